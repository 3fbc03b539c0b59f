package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bookscan/internal/logging"
	"bookscan/internal/scanner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read barcodes from stdin and add them to a collection",
		Long: `Reads one barcode per line from stdin, as a keyboard-wedge scanner types them.
Single letters control the session: s start, x stop, c add, f add and finish,
k skip, d dismiss an error, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			client, err := ctx.lookupClient(logger)
			if err != nil {
				return err
			}

			coord := scanner.New(userID, client, store, cfg.Scan.Coordinator(),
				scanner.WithLogger(logging.NewComponentLogger(logger, "scanner")),
			)
			defer coord.Close()
			coord.Start()

			out := cmd.OutOrStdout()
			lines := readLines(cmd.Context(), cmd.InOrStdin())
			err = driveSession(cmd.Context(), coord, lines, out, shouldColorize(out))
			fmt.Fprintf(out, "saved %d item(s)\n", coord.SavedCount())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Collection owner")
	return cmd
}

// readLines sends trimmed non-empty lines until r is exhausted or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// driveSession prints every state change and applies input lines until
// input ends, q is read or ctx is cancelled.
func driveSession(ctx context.Context, coord *scanner.Coordinator, lines <-chan string, out io.Writer, colorize bool) error {
	updates, cancel := coord.Subscribe()
	defer cancel()

	fmt.Fprintln(out, formatUpdate(coord.Snapshot(), colorize))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, open := <-updates:
			if !open {
				return nil
			}
			fmt.Fprintln(out, formatUpdate(u, colorize))
		case line, open := <-lines:
			if !open || applyLine(coord, line) {
				return nil
			}
		}
	}
}

// applyLine reports whether the user asked to quit.
func applyLine(coord *scanner.Coordinator, line string) bool {
	switch strings.ToLower(line) {
	case "q":
		return true
	case "s":
		coord.Start()
	case "x":
		coord.Stop()
	case "c":
		coord.ConfirmContinue()
	case "f":
		coord.ConfirmAndStop()
	case "k":
		coord.Skip()
	case "d":
		coord.DismissError()
	default:
		coord.HandleScan(line)
	}
	return false
}
