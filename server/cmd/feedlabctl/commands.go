package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"feedlab/server/internal/app"
	"feedlab/server/internal/config"
	"feedlab/server/internal/export"
	"feedlab/server/internal/report"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedlabctl",
		Short: "Inspect, export and reset the feedlab event log",
		Long: `Offline tooling for the feedlab research log.

Reads the same durable storage as the feedlab server, so a session recorded
through the web feed can be summarized, exported or wiped from the shell.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "server/configs/config.yaml", "config file path")

	root.AddCommand(newSessionCmd(), newReportCmd(), newExportCmd(), newClearCmd())
	return root
}

// openCore 读取 --config 并打开事件日志核心。
func openCore(cmd *cobra.Command) (*app.Core, *config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	// stdout 留给命令输出。
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	core, err := app.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return core, cfg, nil
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the current session id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()
			fmt.Fprintln(cmd.OutOrStdout(), core.Events.SessionID(cmd.Context()))
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize the event log",
		Long: `Print counts per event type, the ordered click sequence and the
time range of the recorded log as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, _, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			data, err := json.MarshalIndent(report.Summarize(core.Events.Events()), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the event log as JSON or CSV",
		Long: `Export the full event log.

Without --out the document is written to stdout. With --out it is written as
xhs-events-<session>.<format> into that directory. With --sink the configured
export sink (local directory or S3 bucket) receives the file.

Examples:
  feedlabctl export                     # JSON to stdout
  feedlabctl export --format csv --out ./exports
  feedlabctl export --format csv --sink`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			outDir, _ := cmd.Flags().GetString("out")
			useSink, _ := cmd.Flags().GetBool("sink")

			format := report.Format(strings.ToLower(formatFlag))
			if format != report.FormatJSON && format != report.FormatCSV {
				return fmt.Errorf("invalid --format %q: want json or csv", formatFlag)
			}
			if outDir != "" && useSink {
				return fmt.Errorf("--out and --sink are mutually exclusive")
			}

			core, cfg, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			ctx := cmd.Context()
			body, err := report.Render(core.Events.Events(), format)
			if err != nil {
				return err
			}
			if outDir == "" && !useSink {
				fmt.Fprintln(cmd.OutOrStdout(), body)
				return nil
			}

			var sink export.Sink = export.DirSink{Dir: outDir}
			if useSink {
				if sink, err = export.NewSink(ctx, cfg.Export); err != nil {
					return err
				}
			}
			name := report.FileName(core.Events.SessionID(ctx), format)
			location, err := sink.Offer(ctx, name, format.ContentType(), []byte(body))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}
	cmd.Flags().String("format", "json", "export format: json or csv")
	cmd.Flags().String("out", "", "write the export file into this directory")
	cmd.Flags().Bool("sink", false, "hand the export file to the configured sink")
	return cmd
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded event",
		Long:  `Remove the durable event log. The session id is kept.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			core, _, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			n := len(core.Events.Events())
			core.Events.ClearEvents(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d events\n", n)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deletion")
	return cmd
}
