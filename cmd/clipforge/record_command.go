package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Manual recording control",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a manual recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStart()
				if err != nil {
					return err
				}
				if resp.Code != "" {
					return codeError(resp.Code, resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording started (session %s)\n", resp.SessionID)
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the recording and finalize the file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStop()
				if err != nil {
					return err
				}
				if resp.Code != "" {
					return codeError(resp.Code, resp.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording saved to %s\n", resp.Path)
				return nil
			})
		},
	}

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recording state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStatus()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Recording)
				}
				stdout := cmd.OutOrStdout()
				rec := resp.Recording
				fmt.Fprintf(stdout, "State: %s\n", rec.Status)
				if rec.SessionID != "" {
					fmt.Fprintf(stdout, "Session: %s\n", rec.SessionID)
					fmt.Fprintf(stdout, "Encoder: %s\n", rec.Encoder)
					fmt.Fprintf(stdout, "Elapsed: %s\n", time.Duration(rec.ElapsedSeconds)*time.Second)
					fmt.Fprintf(stdout, "Segments: %d\n", rec.Segments)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")

	recordCmd.AddCommand(startCmd, stopCmd, statusCmd)
	return recordCmd
}
