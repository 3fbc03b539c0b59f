package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"bookscan/internal/scanner"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
)

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(s, color string, colorize bool) string {
	if !colorize {
		return s
	}
	return color + s + ansiReset
}

// formatUpdate renders one state change as a single status line.
func formatUpdate(u scanner.Update, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d saved] ", u.SavedCount)

	switch s := u.State.(type) {
	case scanner.Idle:
		b.WriteString(paint("stopped", ansiBlue, colorize) + " (s to start, q to quit)")
	case scanner.Scanning:
		b.WriteString(paint("ready", ansiGreen, colorize) + ", scan a barcode")
	case scanner.Cooldown:
		b.WriteString(paint("ready", ansiGreen, colorize) + ", scan the next barcode")
	case scanner.Searching:
		fmt.Fprintf(&b, "looking up %s...", s.Identifier)
	case scanner.Confirming:
		fmt.Fprintf(&b, "%s %s", paint("found", ansiYellow, colorize), describe(s.Item.Title, s.Item.Author))
		b.WriteString(" (c add, f add and finish, k skip)")
	case scanner.Saving:
		fmt.Fprintf(&b, "saving %s...", s.Item.Title)
	case scanner.ErrorState:
		b.WriteString(paint(s.Message, ansiRed, colorize))
		if s.CanRetry {
			b.WriteString(" (d to continue)")
		} else {
			b.WriteString(" (d to dismiss)")
		}
	default:
		b.WriteString(u.State.Name())
	}
	return b.String()
}

func describe(title, author string) string {
	if author == "" {
		return fmt.Sprintf("%q", title)
	}
	return fmt.Sprintf("%q by %s", title, author)
}
