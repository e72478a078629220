package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the clipforged daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.FindDaemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the clipforged daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the clipforged daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.FindDaemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, recording, and replay status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("Clipforge", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Clipforge", statusWarn, "Not running (run `clipforge start`)", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Recording", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("State", recordingStatusKind(status.Recording.Status), status.Recording.Status, colorize))
			if status.Recording.SessionID != "" {
				fmt.Fprintln(stdout, renderStatusLine("Session", statusInfo, status.Recording.SessionID, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Encoder", statusInfo, status.Recording.Encoder, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Elapsed", statusInfo, (time.Duration(status.Recording.ElapsedSeconds)*time.Second).String(), colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Instant Replay", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Replay.Active {
				detail := fmt.Sprintf("%.0fs buffered of %.0fs (%d segments)",
					status.Replay.BufferedSeconds, status.Replay.CapacitySeconds, status.Replay.Segments)
				fmt.Fprintln(stdout, renderStatusLine("Buffer", statusOK, detail, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Buffer", statusInfo, "Inactive", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Library", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Clips", statusInfo, fmt.Sprintf("%d indexed", status.LibraryCount), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.LibraryDBPath, colorize))

			if len(status.Encoders) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Encoders", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderEncoderTable(status.Encoders))
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func recordingStatusKind(status string) statusKind {
	switch status {
	case "recording":
		return statusOK
	case "starting", "stopping":
		return statusWarn
	default:
		return statusInfo
	}
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	var opts daemonctl.LaunchOptions
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
