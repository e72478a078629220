package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/export"
	"clipforge/internal/library"
	"clipforge/internal/logging"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var presetID string
	var output string
	var trimStart float64
	var trimEnd float64
	var listPresets bool

	cmd := &cobra.Command{
		Use:   "export [input]",
		Short: "Re-encode a clip with a platform preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if listPresets {
				return renderPresetTable(cmd)
			}
			if len(args) != 1 {
				return errors.New("export requires exactly one input file (or --list to show presets)")
			}

			cfg := ctx.configValue()
			if cfg == nil {
				return errors.New("configuration not available")
			}

			if presetID == "" {
				presetID = cfg.Export.DefaultPreset
			}
			preset, err := export.FindPreset(presetID)
			if err != nil {
				return err
			}

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("inspect input: %w", err)
			}

			if trimEnd > 0 && trimEnd <= trimStart {
				return errors.New("--end must be greater than --start")
			}

			dest := strings.TrimSpace(output)
			if dest == "" {
				dest = export.OutputPath(cfg.Paths.ExportsDir, input, preset)
			} else if dest, err = config.ExpandPath(dest); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			job := export.Job{
				Input:     input,
				Output:    dest,
				Preset:    preset,
				TrimStart: trimStart,
				TrimEnd:   trimEnd,
			}
			fmt.Fprintf(stdout, "Exporting with preset %s (%s)...\n", preset.ID, preset.Name)
			if err := export.Run(cmd.Context(), logger, job); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Exported to %s\n", dest)

			// Index the export so it shows up in the library even when
			// the daemon is not running.
			store, err := library.Open(cfg)
			if err != nil {
				fmt.Fprintf(stdout, "Warning: export not indexed: %v\n", err)
				return nil
			}
			defer store.Close()
			indexer := library.NewIndexer(store, cfg.FFprobeBinary())
			if err := indexer.IndexFile(cmd.Context(), dest, string(library.SourceExport)); err != nil {
				fmt.Fprintf(stdout, "Warning: export not indexed: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&presetID, "preset", "p", "", "Export preset id (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default derived from the preset)")
	cmd.Flags().Float64Var(&trimStart, "start", 0, "Trim start in seconds")
	cmd.Flags().Float64Var(&trimEnd, "end", 0, "Trim end in seconds")
	cmd.Flags().BoolVar(&listPresets, "list", false, "List available presets")
	return cmd
}

func renderPresetTable(cmd *cobra.Command) error {
	rows := make([][]string, 0, 4)
	for _, preset := range export.Presets() {
		resolution := "source"
		if preset.Width > 0 {
			resolution = fmt.Sprintf("%dx%d", preset.Width, preset.Height)
		}
		rows = append(rows, []string{
			preset.ID,
			preset.Name,
			resolution,
			preset.Bitrate,
			preset.Description,
		})
	}
	table := renderTable(
		[]string{"ID", "Name", "Resolution", "Bitrate", "Description"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}
