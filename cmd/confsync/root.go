package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/Azure/AppConfiguration-Sync/internal/app"
	"github.com/Azure/AppConfiguration-Sync/internal/config"
	"github.com/Azure/AppConfiguration-Sync/internal/logging"
	"github.com/Azure/AppConfiguration-Sync/internal/report"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type rootOptions struct {
	ConfigPath string
	EnvFiles   []string
	Output     string // text | json
	LogLevel   string
	LogOutput  string
}

// syncFlags are the settings that may override the config file.
type syncFlags struct {
	Root        string
	Files       string
	Format      string
	Separator   string
	Depth       string
	Strict      bool
	Prefix      string
	Label       string
	Tags        string
	ContentType string
	StoreType   string
	KVSName     string
	KVSARN      string
	Region      string
	StorePath   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "confsync",
		Short:         "Sync configuration files into a key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{report.FormatText, report.FormatJSON}, opts.Output) {
				return &exitError{Code: exitCommandError, Err: fmt.Errorf("invalid output %q: must be text or json", opts.Output)}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", []string{".env", ".env.local"}, ".env files to load")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", report.FormatText, "report format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogOutput, "log-output", "", "log destination (stderr|stdout|discard|<file>)")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newLockCommand(opts, true))
	cmd.AddCommand(newLockCommand(opts, false))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return cmd
}

func addSyncFlags(fs *pflag.FlagSet, f *syncFlags) {
	fs.StringVar(&f.Root, "root", "", "directory file patterns are resolved against")
	fs.StringVar(&f.Files, "files", "", "glob of configuration files, e.g. 'config/**/*.json'")
	fs.StringVar(&f.Format, "format", "", "file format (json|yaml|properties|toml)")
	fs.StringVar(&f.Separator, "separator", "", "separator between flattened key segments")
	fs.StringVar(&f.Depth, "depth", "", "maximum flatten depth")
	fs.BoolVar(&f.Strict, "strict", false, "delete settings in scope that the files no longer contain")
	fs.StringVar(&f.Prefix, "prefix", "", "prefix added to every key")
	fs.StringVar(&f.Label, "label", "", "label applied to every setting")
	fs.StringVar(&f.Tags, "tags", "", "JSON object of string tags applied to every setting")
	fs.StringVar(&f.ContentType, "content-type", "", "content type applied to every setting")
	addStoreFlags(fs, f)
}

func addStoreFlags(fs *pflag.FlagSet, f *syncFlags) {
	fs.StringVar(&f.StoreType, "store", "", "store type (cloudfront|sqlite)")
	fs.StringVar(&f.KVSName, "kvs-name", "", "CloudFront key value store name")
	fs.StringVar(&f.KVSARN, "kvs-arn", "", "CloudFront key value store ARN")
	fs.StringVar(&f.Region, "region", "", "AWS region override")
	fs.StringVar(&f.StorePath, "store-path", "", "SQLite database path")
}

// apply copies every flag the user set onto cfg. Flags a command does not
// define are never changed.
func (f *syncFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]struct {
		src string
		dst *string
	}{
		"root":         {f.Root, &cfg.Root},
		"files":        {f.Files, &cfg.Files},
		"format":       {f.Format, &cfg.Format},
		"separator":    {f.Separator, &cfg.Separator},
		"prefix":       {f.Prefix, &cfg.Prefix},
		"label":        {f.Label, &cfg.Label},
		"tags":         {f.Tags, &cfg.Tags},
		"content-type": {f.ContentType, &cfg.ContentType},
		"store":        {f.StoreType, &cfg.Store.Type},
		"kvs-name":     {f.KVSName, &cfg.Store.KVSName},
		"kvs-arn":      {f.KVSARN, &cfg.Store.KVSARN},
		"region":       {f.Region, &cfg.Store.Region},
		"store-path":   {f.StorePath, &cfg.Store.Path},
	}
	for name, s := range strs {
		if fs.Changed(name) {
			*s.dst = s.src
		}
	}
	if fs.Changed("strict") {
		cfg.Strict = f.Strict
	}
	if fs.Changed("depth") {
		depth, err := config.ParseDepth(f.Depth)
		if err != nil {
			return err
		}
		cfg.Depth = depth
	}
	return nil
}

// session is everything a command needs for one or more runs.
type session struct {
	run    *config.Run
	logger zerolog.Logger
	closer io.Closer
	runner *app.Runner
}

// loadConfig layers env files, the config file, the environment and the
// command's flags, in increasing precedence.
func (opts *rootOptions) loadConfig(cmd *cobra.Command, flags *syncFlags) (config.Config, error) {
	if err := config.LoadEnvFiles(opts.EnvFiles...); err != nil {
		return config.Config{}, &exitError{Code: exitCommandError, Err: err}
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, &exitError{Code: exitCommandError, Err: err}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := flags.apply(cmd.Flags(), &cfg); err != nil {
		return config.Config{}, &exitError{Code: exitCommandError, Err: err}
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogOutput != "" {
		cfg.Log.Output = opts.LogOutput
	}
	return cfg, nil
}

func (opts *rootOptions) newSession(cmd *cobra.Command, flags *syncFlags) (*session, error) {
	cfg, err := opts.loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	run, err := cfg.Resolve()
	if err != nil {
		return nil, &exitError{Code: exitCommandError, Err: err}
	}

	logger, closer := logging.New(cfg.Log)
	return &session{
		run:    run,
		logger: logger,
		closer: closer,
		runner: &app.Runner{
			Open:   app.OpenStore,
			Report: report.Printer{W: cmd.OutOrStdout(), Format: opts.Output},
		},
	}, nil
}

// once performs a single run under a fresh run id.
func (s *session) once(ctx context.Context, dryRun bool) error {
	ctx, _ = logging.WithRun(ctx, s.logger)
	_, err := s.runner.Run(ctx, s.run, dryRun)
	return err
}

func (s *session) Close() error { return s.closer.Close() }
