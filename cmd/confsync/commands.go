package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/AppConfiguration-Sync/internal/app"
	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/Azure/AppConfiguration-Sync/internal/logging"
	"github.com/Azure/AppConfiguration-Sync/internal/watch"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	flags := &syncFlags{}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync configuration files into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.once(cmd.Context(), dryRun)
		},
	}
	addSyncFlags(cmd.Flags(), flags)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate only, print plan")
	return cmd
}

func newPlanCommand(opts *rootOptions) *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the deletes and puts a sync would perform",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.once(cmd.Context(), true)
		},
	}
	addSyncFlags(cmd.Flags(), flags)
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	flags := &syncFlags{}
	debounce := watch.DefaultDebounce

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync now and again whenever configuration files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = s.logger.WithContext(ctx)

			w := &watch.Watcher{
				Root:     s.run.Files.Root,
				Pattern:  s.run.Files.Pattern,
				Debounce: debounce,
				Run: func(ctx context.Context) error {
					return s.once(ctx, false)
				},
			}
			return w.Watch(ctx)
		},
	}
	addSyncFlags(cmd.Flags(), flags)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "wait for changes to settle before syncing")
	return cmd
}

func newLockCommand(opts *rootOptions, readOnly bool) *cobra.Command {
	flags := &syncFlags{}
	use, short := "lock", "Make a setting read-only so syncs cannot change it"
	if !readOnly {
		use, short = "unlock", "Make a locked setting writable again"
	}

	cmd := &cobra.Command{
		Use:   use + " KEY",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Store.Validate(); err != nil {
				return &exitError{Code: exitCommandError, Err: err}
			}

			logger, closer := logging.New(cfg.Log)
			defer closer.Close()
			ctx, _ := logging.WithRun(cmd.Context(), logger)

			runner := &app.Runner{Open: app.OpenStore}
			if err := runner.SetReadOnly(ctx, cfg.Store, args[0], kvs.LabelOf(cfg.Label), readOnly); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] read-only: %t\n", args[0], cfg.Label, readOnly)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.Label, "label", "", "label of the setting")
	addStoreFlags(cmd.Flags(), flags)
	return cmd
}
