// Command hospital-embed samples hospital records from Elasticsearch,
// renders each one as a document, embeds it and stores the vectors in a
// fresh collection, then prints what was stored.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bippobippo/hospital-vectors/pkg/config"
	"github.com/bippobippo/hospital-vectors/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "hospital-embed",
		Short:         "Embed a sample of hospital records into a vector collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSetup(cmd, func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
				_, err := runJob(ctx, cfg, out, log)
				return err
			})
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.Int("sample-size", 0, "number of records to sample (default from config)")
	pf.Int("batch-size", 0, "records per embed/store batch (default from config)")
	pf.String("backend", "", "vector store backend: chromem or qdrant")
	pf.String("locale", "", "document language: ko or en")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Reset the collection and embed a fresh sample (default)",
		RunE:  root.RunE,
	})
	root.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check the stored collection against a fresh sample without writing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSetup(cmd, func(ctx context.Context, cfg config.Config, log *zap.Logger) error {
				return verifyJob(ctx, cfg, out, log)
			})
		},
	})
	return root
}

// withSetup loads and validates config, builds the logger and runs f.
func withSetup(cmd *cobra.Command, f func(context.Context, config.Config, *zap.Logger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := f(cmd.Context(), cfg, log); err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}
	return nil
}

// loadConfig applies flags that were set on top of file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flags.Changed("sample-size") {
		cfg.Search.SampleSize, _ = flags.GetInt("sample-size")
	}
	if flags.Changed("batch-size") {
		cfg.Pipeline.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("backend") {
		cfg.Store.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("locale") {
		cfg.Pipeline.Locale, _ = flags.GetString("locale")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
