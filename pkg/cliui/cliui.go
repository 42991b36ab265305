// Package cliui provides terminal helpers (styles, step indicators, markdown
// rendering) for the tgrelay CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	NameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// ApplyColorEnv drops all styling when NO_COLOR is set, following
// https://no-color.org. It reports whether color was disabled.
func ApplyColorEnv() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); !ok {
		return false
	}
	lipgloss.SetColorProfile(termenv.Ascii)
	return true
}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ mark and the elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)

			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))))

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// MaskSecret keeps the last four characters of a secret for display.
func MaskSecret(secret string) string {
	const visible = 4
	r := []rune(secret)
	if len(r) <= visible {
		return "****"
	}
	return "****" + string(r[len(r)-visible:])
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
