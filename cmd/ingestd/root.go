package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ingestd/internal/config"
)

const (
	defaultAddr   = ":8080"
	defaultServer = "http://127.0.0.1:8080"
)

// rootOptions carries the persistent flags and what they resolve to.
type rootOptions struct {
	logLevel   string
	configPath string

	file config.Config
	log  zerolog.Logger
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "ingestd",
		Short:         "Blocking ingest event gate with a single listener",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envStr("INGESTD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error (defaults INGESTD_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.configPath != "" {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.file = cfg
			if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") {
				opts.logLevel = cfg.LogLevel
			}
		}
		l, err := newLogger(opts.logLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		opts.log = l
		return nil
	}

	root.AddCommand(newServeCmd(opts), newEmitCmd(opts), newListenCmd(opts))
	return root
}

// newLogger builds the console logger shared by every subcommand.
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// splitCSV splits a comma separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
