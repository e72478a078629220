package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/ipc"
)

func newEncodersCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "List encoder availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Encoders(probe)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Encoders)
				}
				if len(resp.Encoders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No encoder candidates found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEncoderTable(resp.Encoders))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Re-run encoder probes instead of using cached results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderEncoderTable(encoders []ipc.EncoderInfo) string {
	rows := make([][]string, 0, len(encoders))
	for _, enc := range encoders {
		device := enc.Device
		if device == "" {
			device = "-"
		}
		rows = append(rows, []string{
			enc.Kind,
			enc.Codec,
			device,
			yesNo(enc.Hardware),
			yesNo(enc.Available),
		})
	}
	return renderTable(
		[]string{"Kind", "Codec", "Device", "Hardware", "Available"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
