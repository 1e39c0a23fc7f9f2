package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Addr    string
	Format  string // "text" | "json"
	Timeout time.Duration
}

var validFormats = []string{"text", "json"}

func defaultAddr() string {
	if v := os.Getenv("GATEKEEPER_LISTEN_ADDR"); v != "" {
		return v
	}
	return "127.0.0.1:8080"
}

// newRootCommand creates the root command for the gatekeeper admin CLI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gatekeeperctl",
		Short: "Administer a running gatekeeper controller",
		Long: `gatekeeperctl talks to the gatekeeper admin API.

Examples:
  gatekeeperctl list
  gatekeeperctl open --addr 10.0.0.7:8080
  gatekeeperctl events --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", defaultAddr(), "admin API address (host:port)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 40*time.Second, "request timeout")

	cmd.AddCommand(newHealthCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newCommandCommand(opts, "open", "Pulse the lock open"))
	cmd.AddCommand(newCommandCommand(opts, "clear", "Erase every registry record"))

	return cmd
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show controller health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(opts.Addr, opts.Timeout)
			h, err := client.health(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nrecords: %d\ntransport: %s\ntime: %s\n",
				h.Status, h.Records, h.Transport, h.Time)
			return nil
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(opts.Addr, opts.Timeout)
			records, err := client.credentials(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tMODALITY\tKEY\tNAME")
			for _, r := range records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Slot, r.Modality, r.Key, r.Name)
			}
			return tw.Flush()
		},
	}
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent access events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(opts.Addr, opts.Timeout)
			events, err := client.events(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), events)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tKIND\tMETHOD\tKEY\tNAME")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.At, e.Kind, e.Method, e.Key, e.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of events to show")
	return cmd
}

// newCommandCommand creates a subcommand that submits a remote command to
// the control loop.
func newCommandCommand(opts *rootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(opts.Addr, opts.Timeout)
			resp, err := client.command(cmd.Context(), name)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: accepted\n", resp.Command)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
