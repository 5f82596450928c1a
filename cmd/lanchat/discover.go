package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescp17/lanChat/internal/util"
)

func discoverCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List room services announced on the local network",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := lookup(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			if len(services) == 0 {
				fmt.Println("No room services found.")
				return nil
			}
			fmt.Println(util.PadRight("NAME", 24) + util.PadRight("ROOM", 12) + "URL")
			for _, s := range services {
				u, err := s.URL()
				if err != nil {
					u = "-"
				}
				fmt.Println(util.PadRight(s.Name, 24) + util.PadRight(s.Room(), 12) + u)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to browse")
	return cmd
}
