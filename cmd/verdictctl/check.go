package main

import (
	"github.com/spf13/cobra"

	"github.com/mbd888/verdict/internal/fraud"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var (
		file    string
		blocked []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Score a transaction against the fraud rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req fraud.CheckRequest
			if err := readRequest(cmd, file, &req); err != nil {
				return err
			}

			locs := append(root.blockedLocations(), blocked...)
			svc := fraud.NewService(nil, fraud.NewStaticBlocklist(locs...))

			a, err := svc.Check(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		},
	}

	addFileFlag(cmd, &file)
	cmd.Flags().StringSliceVar(&blocked, "blocked", nil, "extra blocked locations (comma separated)")
	return cmd
}
