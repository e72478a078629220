package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/ipc"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Instant replay buffer control",
	}

	toggle := func(cmd *cobra.Command, wantActive bool) error {
		return ctx.withClient(func(client *ipc.Client) error {
			status, err := client.ReplayStatus()
			if err != nil {
				return err
			}
			if status.Replay.Active == wantActive {
				if wantActive {
					fmt.Fprintln(cmd.OutOrStdout(), "Instant replay is already active")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Instant replay is already off")
				}
				return nil
			}
			resp, err := client.ReplayToggle()
			if err != nil {
				return err
			}
			if resp.Code != "" {
				return codeError(resp.Code, resp.Message)
			}
			if resp.Active {
				fmt.Fprintln(cmd.OutOrStdout(), "Instant replay enabled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Instant replay disabled")
			}
			return nil
		})
	}

	onCmd := &cobra.Command{
		Use:   "on",
		Short: "Enable the instant replay buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return toggle(cmd, true)
		},
	}

	offCmd := &cobra.Command{
		Use:   "off",
		Short: "Disable the instant replay buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return toggle(cmd, false)
		},
	}

	var seconds int
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Save the trailing replay window to a clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds < 0 {
				return errors.New("--seconds must be positive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReplaySave(seconds)
				if err != nil {
					return err
				}
				if resp.Code != "" {
					return codeError(resp.Code, resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Replay saved to %s\n", resp.Path)
				return nil
			})
		},
	}
	saveCmd.Flags().IntVar(&seconds, "seconds", 0, "Window length in seconds (default from config)")

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show replay buffer state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReplayStatus()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Replay)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Active: %s\n", yesNo(resp.Replay.Active))
				if resp.Replay.Active {
					fmt.Fprintf(stdout, "Buffered: %.0fs of %.0fs\n", resp.Replay.BufferedSeconds, resp.Replay.CapacitySeconds)
					fmt.Fprintf(stdout, "Segments: %d\n", resp.Replay.Segments)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")

	replayCmd.AddCommand(onCmd, offCmd, saveCmd, statusCmd)
	return replayCmd
}
