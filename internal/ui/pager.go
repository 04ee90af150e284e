package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls pager behavior.
type PagerOptions struct {
	// NoPager disables the pager (--no-pager).
	NoPager bool
}

// shouldUsePager is false for --no-pager, JWL_NO_PAGER, or when stdout is
// not a terminal.
func shouldUsePager(opts PagerOptions) bool {
	if opts.NoPager || os.Getenv("JWL_NO_PAGER") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// pagerCommand checks JWL_PAGER, then PAGER, and defaults to less.
func pagerCommand() string {
	if p := os.Getenv("JWL_PAGER"); p != "" {
		return p
	}
	if p := os.Getenv("PAGER"); p != "" {
		return p
	}
	return "less"
}

func terminalHeight() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	_, h, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return h
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// ToPager writes content to w, going through the pager only when stdout is
// a terminal and content would not fit on one screen.
func ToPager(w io.Writer, content string, opts PagerOptions) error {
	if !shouldUsePager(opts) {
		_, err := io.WriteString(w, content)
		return err
	}
	if h := terminalHeight(); h > 0 && lineCount(content) < h {
		_, err := io.WriteString(w, content)
		return err
	}

	parts := strings.Fields(pagerCommand())
	if len(parts) == 0 {
		_, err := io.WriteString(w, content)
		return err
	}
	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - pager is user-configured
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if os.Getenv("LESS") == "" {
		// -R keeps colors, -F exits when the content fits, -X keeps the screen.
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", parts[0], err)
	}
	return nil
}
