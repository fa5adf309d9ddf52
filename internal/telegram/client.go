// Package telegram sends trade notifications and receives operator commands.
package telegram

import (
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Bot API for a single authorized chat.
type Client struct {
	client *resty.Client
	token  string
	chatID string
}

// NewClient returns a client for the bot token and chat. baseURL may be empty.
func NewClient(baseURL, token, chatID string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(75 * time.Second). // long poll is 60s
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Client{client: rc, token: token, chatID: chatID}
}

type apiResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Notify sends a message to the configured chat. Failures are logged, never returned.
func (c *Client) Notify(text string) {
	if c == nil || c.token == "" || c.chatID == "" {
		log.Println("Warning: Telegram credentials missing, skipping notification")
		return
	}
	log.Printf("DEBUG: Telegram Notify: %s", text)

	var out apiResponse
	resp, err := c.client.R().
		SetBody(map[string]string{
			"chat_id":    c.chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		SetResult(&out).
		SetError(&out).
		Post(c.method("sendMessage"))
	if err != nil {
		log.Printf("ERROR: Telegram Alert Failed: %v", err)
		return
	}
	if resp.IsError() || !out.Ok {
		log.Printf("ERROR: Telegram API Error: %s (Code: %d)", out.Description, out.ErrorCode)
	}
}

func (c *Client) method(name string) string {
	return fmt.Sprintf("/bot%s/%s", c.token, name)
}
