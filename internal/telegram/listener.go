package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// Update represents a Telegram Update object (partial schema)
type Update struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

type UpdateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes one slash command and returns the reply text.
type CommandHandler func(command string) string

const retryDelay = 5 * time.Second

// Listen long-polls for commands until ctx is done. It blocks.
func (c *Client) Listen(ctx context.Context, handler CommandHandler) {
	authChatID, err := strconv.ParseInt(c.chatID, 10, 64)
	if c.token == "" || err != nil {
		log.Println("Telegram Listener: Credentials missing, disabled.")
		return
	}

	log.Println("Telegram Listener: Started")
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Println("Telegram Listener: Stopped")
			return
		}

		updates, err := c.getUpdates(ctx, offset, 60)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("ERROR: Telegram Listener: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}
		offset = c.dispatch(updates, authChatID, offset, handler)
	}
}

// dispatch runs handler for authorized commands and returns the next offset.
func (c *Client) dispatch(updates []Update, authChatID int64, offset int, handler CommandHandler) int {
	for _, update := range updates {
		offset = update.UpdateID + 1

		if update.Message.Chat.ID != authChatID {
			// No reply to strangers.
			log.Printf("Warning: ⚠️ UNAUTHORIZED ACCESS ATTEMPT: User %s (ID: %d) tried: %s",
				update.Message.From.Username, update.Message.Chat.ID, update.Message.Text)
			continue
		}

		text := strings.TrimSpace(update.Message.Text)
		if strings.HasPrefix(text, "/") {
			log.Printf("Command received: %s", text)
			c.Notify(handler(text))
		}
	}
	return offset
}

func (c *Client) getUpdates(ctx context.Context, offset, timeoutSec int) ([]Update, error) {
	var result UpdateResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.Itoa(offset),
			"timeout": strconv.Itoa(timeoutSec),
		}).
		SetResult(&result).
		SetError(&result).
		Get(c.method("getUpdates"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() || !result.Ok {
		return nil, fmt.Errorf("api error: %s (code %d)", result.Description, result.ErrorCode)
	}
	return result.Result, nil
}
