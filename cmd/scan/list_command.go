package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bookscan/internal/collection"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show a user's collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Collection is empty")
				return nil
			}
			fmt.Fprintln(out, renderCollection(items))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Collection owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderCollection(items []collection.Item) string {
	rows := make([][]string, 0, len(items))
	for i, it := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			it.Identifier,
			it.Title,
			it.Author,
			it.AddedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable(
		[]string{"#", "Identifier", "Title", "Author", "Added"},
		rows,
		[]columnAlignment{alignRight},
		48,
	)
}
