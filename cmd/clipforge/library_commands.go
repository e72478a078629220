package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/ipc"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Browse and manage the recordings library",
	}

	var limit int
	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List library entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryList(limit, "")
				if err != nil {
					return err
				}
				return renderLibraryItems(cmd, resp.Items, asJSON)
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 25, "Maximum entries to show")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")

	var searchJSON bool
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over titles and paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LibraryList(0, query)
				if err != nil {
					return err
				}
				return renderLibraryItems(cmd, resp.Items, searchJSON)
			})
		},
	}
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Emit machine-readable JSON")

	var deleteFile bool
	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id, err := resolveLibraryID(client, args[0])
				if err != nil {
					return err
				}
				resp, err := client.LibraryRemove(id, deleteFile)
				if err != nil {
					return err
				}
				if resp.Code != "" {
					return codeError(resp.Code, resp.Message)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Removed %q (%s)\n", resp.Removed.Title, resp.Removed.ID)
				if deleteFile {
					fmt.Fprintf(stdout, "Deleted %s\n", resp.Removed.Path)
				}
				return nil
			})
		},
	}
	rmCmd.Flags().BoolVar(&deleteFile, "delete-file", false, "Also delete the media file from disk")

	libraryCmd.AddCommand(listCmd, searchCmd, rmCmd)
	return libraryCmd
}

func renderLibraryItems(cmd *cobra.Command, items []ipc.LibraryItem, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Library is empty")
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			item.Title,
			item.SourceType,
			formatClipDuration(item.DurationSeconds),
			item.Resolution,
			formatSize(item.SizeBytes),
			formatCreatedAt(item.CreatedAt),
		})
	}
	table := renderTable(
		[]string{"ID", "Title", "Type", "Duration", "Resolution", "Size", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

// resolveLibraryID expands a short id prefix (as shown by `library
// list`) to the full entry id.
func resolveLibraryID(client *ipc.Client, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 36 {
		return arg, nil
	}
	resp, err := client.LibraryList(0, "")
	if err != nil {
		return "", err
	}
	var match string
	for _, item := range resp.Items {
		if strings.HasPrefix(item.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", arg)
			}
			match = item.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no library entry matches %q", arg)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatClipDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).Round(time.Second).String()
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatCreatedAt(value string) string {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return ts.Local().Format("2006-01-02 15:04")
}
