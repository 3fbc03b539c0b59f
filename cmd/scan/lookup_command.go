package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bookscan/internal/barcode"
	"bookscan/internal/entity"
	"bookscan/internal/lookup"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Look up one barcode without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := barcode.Validate(args[0])
			if err != nil {
				return fmt.Errorf("%s is not a valid book barcode", args[0])
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			client, err := ctx.lookupClient(logger)
			if err != nil {
				return err
			}

			identifier := barcode.LookupIdentifier(code)
			item, err := client.Resolve(cmd.Context(), identifier)
			if errors.Is(err, lookup.ErrNotFound) {
				return fmt.Errorf("no match found for %s", identifier)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderItem(code, item))
			return nil
		},
	}
}

func renderItem(code barcode.Code, item entity.CatalogItem) string {
	rows := [][]string{
		{"Identifier", item.Identifier},
		{"Type", string(code.Type)},
		{"Title", item.Title},
		{"Author", item.Author},
		{"Publisher", item.Publisher},
		{"Published", item.PublishDate},
		{"Cover", item.ImageURL},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil, 72)
}
