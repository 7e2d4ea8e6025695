package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"owner-revenue-scraper/config"
	"owner-revenue-scraper/models"
	"owner-revenue-scraper/scraper/console"
	"owner-revenue-scraper/utils"
)

// Process exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitConfig       = 2
	exitStaleSession = 3
	exitMFATimeout   = 4
)

var errConfig = errors.New("configuration error")

type options struct {
	envFile   string
	inputFile string
	logLevel  string
	headless  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch code {
		case exitStaleSession:
			fmt.Fprintln(os.Stderr, "The saved console session has expired. Rerun, or run `owner-revenue-scraper login`, to sign in again.")
		case exitMFATimeout:
			fmt.Fprintln(os.Stderr, "Sign-in needs approval on the second factor device. Run `owner-revenue-scraper login` and approve the prompt.")
		}
	}
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig), errors.Is(err, config.ErrMissingField):
		return exitConfig
	case errors.Is(err, console.ErrStaleSession):
		return exitStaleSession
	case errors.Is(err, console.ErrMFATimeout):
		return exitMFATimeout
	default:
		return exitFailure
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "owner-revenue-scraper",
		Short:         "Collect last month's owner revenue per property and deliver it to a webhook",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtraction(cmd, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	f.StringVar(&opts.inputFile, "input", "", "JSON input document (default $INPUT_FILE)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	f.BoolVar(&opts.headless, "headless", true, "run the browser headless (default $HEADLESS)")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Log in if needed, collect revenue and deliver it (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtraction(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Force a fresh console login and save the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "month",
		Short: "Print the month a run would collect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile, opts.inputFile)
			if err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), models.PreviousMonth(nowFunc(), cfg.Location()))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "selectors",
		Short: "List the selector roles accepted in selectorOverrides",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, role := range console.Roles() {
				fmt.Fprintln(cmd.OutOrStdout(), role)
			}
		},
	})
	return cmd
}

// loadConfig applies command-line overrides and validates.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load(opts.envFile, opts.inputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = opts.headless
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingField) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, utils.NewLogger(cfg.LogLevel), nil
}

func runExtraction(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, cleanup, err := buildPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = p.Run(cmd.Context())
	if err != nil {
		logger.Error("Run failed: %v", err)
	}
	return err
}

func runLogin(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, cleanup, err := buildPipeline(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.Login(cmd.Context()); err != nil {
		logger.Error("Login failed: %v", err)
		return err
	}
	logger.Info("Session saved. The next run will reuse it.")
	return nil
}
