package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newCatalogCommand(current func() *Runtime) *cobra.Command {
	var page string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the products on a catalog page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := current()
			seq, err := rt.catalogClient().FetchPage(cmd.Context(), page)
			if err != nil {
				return err
			}

			s := newStyles()
			out := cmd.OutOrStdout()
			products := slices.Collect(seq)
			fmt.Fprintln(out, s.Title.Render(fmt.Sprintf("Catalog page %s (%d products)", page, len(products))))
			for i, p := range products {
				fmt.Fprintln(out, s.product(i+1, p))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&page, "page", "p", "1", "catalog page to list")
	return cmd
}
