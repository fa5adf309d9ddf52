package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func printTitle(out io.Writer, title string) {
	fmt.Fprintln(out, titleStyle.Render(title))
}

func printEmpty(out io.Writer, what string) {
	fmt.Fprintln(out, emptyStyle.Render("no "+what+" recorded yet"))
}
