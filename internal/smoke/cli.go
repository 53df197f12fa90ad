package smoke

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/paramapi/pkg/logger"
)

// NewCommand builds the smoke CLI. Output goes to out; nil means stdout.
func NewCommand(out io.Writer) *cobra.Command {
	if out == nil {
		out = os.Stdout
	}
	var (
		cfg       Config
		logFormat string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the client scenario suite against a running paramapi server",
		Example: `  # Test a local server
  smoke

  # Run two scenarios against another host
  smoke --url http://10.0.0.5:8080 --only app_health,search_items --verbose`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(out)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return fmt.Errorf("failed to set log level: %w", err)
			}
			_, err := Run(cmd.Context(), &cfg, logger.Named("smoke"))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", DefaultBaseURL, "base URL of the service")
	flags.IntVar(&cfg.Workers, "workers", DefaultWorkers, "number of concurrent workers")
	flags.DurationVar(&cfg.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "log passing scenarios too")
	flags.StringSliceVar(&cfg.Only, "only", nil, "comma-separated scenario names to run")
	flags.StringVar(&logFormat, "log-format", logger.FormatConsole, "log output format: json or console")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(newListCommand(out))
	return cmd
}

func newListCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenario names",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, s := range Scenarios() {
				if _, err := fmt.Fprintln(out, s.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// timeoutOrDefault guards against a zero --timeout disabling the client timeout.
func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
