package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"loadtest/internal/banner"
	"loadtest/internal/cli"
	"loadtest/internal/config"
	"loadtest/internal/logging"
)

var (
	cfgFile   string
	configErr error
)

var ErrInvalidWorkers = errors.New("workers must be at least 1")

var rootCmd = &cobra.Command{
	Use:   "loadtest [flags] URL",
	Short: "Constant-throughput HTTP load generator",
	Long: `
loadtest sends requests to a single URL at a fixed rate for a fixed time,
spread over a pool of workers, and reports latency CDFs for all, successful
and non-successful responses.

The run report is written as a protobuf-encoded LoadTestRunReport.`,
	Args:              cobra.ExactArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runLoadTest,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(historyCmd, inspectCmd, dummyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.loadtest.yaml)")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.String("history-path", "", "run history database (default is $HOME/.loadtest/history.db)")

	f := rootCmd.Flags()
	f.StringArrayP("header", "H", nil, `request header "Name: Value", repeatable`)
	f.BoolP("insecure", "k", false, "skip TLS certificate and hostname verification")
	f.StringP("upload-file", "T", "", "send the contents of this file (method defaults to PUT)")
	f.StringP("request", "X", "", "HTTP method")
	f.String("cacert", "", "PEM file with the CA certificates to trust")
	f.StringP("cert", "E", "", "PEM client certificate")
	f.String("key", "", "PEM client private key")
	f.StringP("data", "d", "", "request body (method defaults to POST)")
	f.BoolP("location", "L", false, "follow redirects")
	f.String("requests-per-second", "1", "target throughput, a positive decimal")
	f.Int64("duration", 10, "load test duration in seconds")
	f.Int64P("max-time", "m", 0, "per-request timeout in seconds")
	f.Float64("connect-timeout", 0, "connection timeout in seconds")
	f.StringP("output", "o", "", "report path (default loadtest-report-<UTC timestamp>.pb)")
	f.Bool("http1.1", false, "use HTTP/1.1")
	f.Bool("http2-prior-knowledge", false, "use HTTP/2 without upgrade")
	f.Bool("dry-run", false, "print the resolved arguments and exit")
	f.Int("workers", runtime.GOMAXPROCS(0), "number of workers sharing the rate")
	f.Bool("tui", false, "show a live terminal view instead of a progress bar")
	f.String("csv", "", "also write every worker snapshot to this CSV file")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.Bool("history", true, "record the run in the history database")
	f.Bool("no-history", false, "do not record the run")

	cobra.CheckErr(bindFlags(pf, f))
}

func bindFlags(sets ...*pflag.FlagSet) error {
	for _, fs := range sets {
		if err := viper.BindPFlags(fs); err != nil {
			return err
		}
	}
	return nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".loadtest")
		}
	}
	viper.SetEnvPrefix("loadtest")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("failed to read config: %w", err)
		}
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	if err := logging.Setup(os.Stderr, viper.GetString("log-level"), true); err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("loaded config")
	}
	return nil
}

func flagsFromViper(rawURL string) config.Flags {
	f := config.Flags{
		URL:                 rawURL,
		Headers:             viper.GetStringSlice("header"),
		Insecure:            viper.GetBool("insecure"),
		UploadFile:          viper.GetString("upload-file"),
		Method:              viper.GetString("request"),
		CACert:              viper.GetString("cacert"),
		Cert:                viper.GetString("cert"),
		Key:                 viper.GetString("key"),
		Location:            viper.GetBool("location"),
		RequestsPerSecond:   viper.GetString("requests-per-second"),
		DurationSecs:        viper.GetInt64("duration"),
		Output:              viper.GetString("output"),
		HTTP11:              viper.GetBool("http1.1"),
		HTTP2PriorKnowledge: viper.GetBool("http2-prior-knowledge"),
		DryRun:              viper.GetBool("dry-run"),
	}
	if viper.IsSet("data") {
		data := viper.GetString("data")
		f.Data = &data
	}
	if viper.IsSet("max-time") {
		secs := viper.GetInt64("max-time")
		f.MaxTimeSecs = &secs
	}
	if viper.IsSet("connect-timeout") {
		secs := viper.GetFloat64("connect-timeout")
		f.ConnectTimeoutSecs = &secs
	}
	return f
}

// signalContext is cancelled by the first SIGINT or SIGTERM. Later signals
// get the default behaviour back.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(flagsFromViper(args[0]), time.Now())
	if err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Fprint(cmd.OutOrStdout(), config.FormatArgs(cfg))
		return nil
	}

	workers := viper.GetInt("workers")
	if workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return cli.Start(ctx, cfg, cli.Options{
		Workers:     workers,
		TUI:         viper.GetBool("tui"),
		CSVPath:     viper.GetString("csv"),
		MetricsAddr: viper.GetString("metrics-addr"),
		History:     viper.GetBool("history") && !viper.GetBool("no-history"),
		HistoryPath: viper.GetString("history-path"),
		Out:         cmd.OutOrStdout(),
	})
}
