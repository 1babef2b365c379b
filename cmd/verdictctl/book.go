package main

import (
	"github.com/spf13/cobra"

	"github.com/mbd888/verdict/internal/booking"
)

func newBookCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Price a booking or compute a cancellation refund",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req booking.Request
			if err := readRequest(cmd, file, &req); err != nil {
				return err
			}
			if err := booking.Validate(&req); err != nil {
				return err
			}
			return printJSON(cmd, booking.Book(req))
		},
	}

	addFileFlag(cmd, &file)
	return cmd
}
