package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/doctor"
	"clipforge/internal/encoder"
	"clipforge/internal/logging"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose capture, encoder, and storage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration not available")
			}

			selector := encoder.NewSelector(logging.NewNop(), encoder.ParseOrder(cfg.Encoder.Order))
			results := doctor.Report(cmd.Context(), cfg, selector)

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderSectionHeader("Environment Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range results {
				fmt.Fprintln(stdout, renderStatusLine(result.Name, statusKindFromSeverity(string(result.Severity)), result.Detail, colorize))
				if result.Recommendation != "" {
					fmt.Fprintf(stdout, "%s%-*s %s\n", statusIndent, statusLabelWidth, "", "-> "+result.Recommendation)
				}
			}

			if doctor.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}
