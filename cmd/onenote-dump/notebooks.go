package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotebooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notebooks",
		Short: "List the notebooks of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			notebooks, err := a.service.Notebooks(cmd.Context())
			if err != nil {
				return err
			}
			for _, nb := range notebooks {
				fmt.Fprintln(cmd.OutOrStdout(), nb.DisplayName)
			}
			return nil
		},
	}
}
