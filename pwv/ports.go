package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/kintad/PWV3/pkg/device"
	"github.com/spf13/cobra"
)

func newPortsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := device.Ports()
			if err != nil {
				return a.fail(err, "failed to list ports")
			}
			if len(ports) == 0 {
				fmt.Fprintln(a.out, "no serial ports found")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PORT\tDESCRIPTION\tVID:PID\tSERIAL")
			for _, p := range ports {
				id := "-"
				if p.USB {
					id = p.VID + ":" + p.PID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Description, id, p.Serial)
			}
			return tw.Flush()
		},
	}
}
