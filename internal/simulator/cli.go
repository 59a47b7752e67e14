// Package simulator drives a running garage service: it imports garage
// layouts, plays vehicle traffic scenarios and queries status and revenue.
package simulator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/parkwise/internal/config"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL     string
	Timeout time.Duration
	Retries uint
	Verbose bool
}

func (o *RootOptions) client() *Client {
	return NewClient(o.URL, o.Timeout, WithMaxTries(o.Retries))
}

// NewRootCommand creates the garage-sim command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "garage-sim",
		Short:         "Drive a parkwise garage service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if opts.Verbose {
				level = "debug"
			}
			return logger.InitWithOptions(logger.Options{Level: level, Writer: cmd.ErrOrStderr()})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", "http://localhost:3003", "base URL of the service")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	cmd.PersistentFlags().UintVar(&opts.Retries, "retries", 3, "attempts per request on transport errors")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newRevenueCommand(opts))
	return cmd
}

func newImportCommand(opts *RootOptions) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "import <garage-file>",
		Short: "Replace the garage layout from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// Validate locally so a bad file never reaches the service.
			if _, err := config.ParseGarage(raw, currency); err != nil {
				return err
			}
			var doc map[string]any
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return err
			}
			ack, err := opts.client().ImportGarage(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ack)
		},
	}
	cmd.Flags().StringVar(&currency, "currency", types.DefaultCurrency, "currency of base prices in the file")
	return cmd
}

func newRunCommand(opts *RootOptions) *cobra.Command {
	sc := Scenario{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play ENTRY, PARKED and EXIT traffic against the service",
		Example: `  garage-sim run --vehicles 500 --workers 16
  garage-sim run --url http://localhost:8080 --min-stay 5m --max-stay 30m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := opts.client()
			if err := c.Health(ctx); err != nil {
				return fmt.Errorf("service health check failed: %w", err)
			}
			report, err := Run(ctx, c, sc)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&sc.Vehicles, "vehicles", 100, "number of vehicles")
	cmd.Flags().IntVar(&sc.Workers, "workers", runtime.NumCPU()*2, "concurrent drivers")
	cmd.Flags().DurationVar(&sc.MinStay, "min-stay", 15*time.Minute, "shortest stay")
	cmd.Flags().DurationVar(&sc.MaxStay, "max-stay", 3*time.Hour, "longest stay")
	return cmd
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <plate>",
		Short: "Show the price so far of a plate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().PlateStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newRevenueCommand(opts *RootOptions) *cobra.Command {
	var date, sector string
	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Show the revenue of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rev, err := opts.client().Revenue(cmd.Context(), date, sector)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rev)
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().UTC().Format(time.DateOnly), "day as YYYY-MM-DD")
	cmd.Flags().StringVar(&sector, "sector", "", "sector id; empty for every sector")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
