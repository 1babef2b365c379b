package main

import (
	"github.com/spf13/cobra"

	"github.com/mbd888/verdict/internal/energy"
)

func newEnergyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "energy",
		Short: "Plan device states for a household",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req energy.Request
			if err := readRequest(cmd, file, &req); err != nil {
				return err
			}
			if err := energy.Validate(&req); err != nil {
				return err
			}
			return printJSON(cmd, energy.Plan(req))
		},
	}

	addFileFlag(cmd, &file)
	return cmd
}
