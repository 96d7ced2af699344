// Package app runs one configuration sync end to end: load the files,
// build and validate the desired settings, then reconcile the store.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/AppConfiguration-Sync/internal/config"
	"github.com/Azure/AppConfiguration-Sync/internal/configfile"
	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/Azure/AppConfiguration-Sync/internal/report"
	"github.com/Azure/AppConfiguration-Sync/internal/store/cfkvs"
	"github.com/Azure/AppConfiguration-Sync/internal/store/sqlite"
	"github.com/rs/zerolog"
)

// OpenFunc connects to the configured store. The returned closer is
// called when the run ends.
type OpenFunc func(ctx context.Context, cfg config.StoreConfig) (kvs.Store, io.Closer, error)

// Runner executes sync runs.
type Runner struct {
	Open   OpenFunc
	Report report.Printer
}

// ValidationFailedError aborts a run whose desired entries break the
// store's limits. No remote call has been made.
type ValidationFailedError struct {
	Errors []kvs.ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("%d validation errors", len(e.Errors))
}

// ReadOnlySetter is a store whose settings can be locked against writes.
type ReadOnlySetter interface {
	SetReadOnly(ctx context.Context, key string, label kvs.Label, readOnly bool) error
}

// LimitsFor returns the entry limits of a store type.
func LimitsFor(storeType string) kvs.Limits {
	if storeType == config.StoreCloudFront {
		return cfkvs.Limits
	}
	return kvs.DefaultLimits
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore is the OpenFunc for the stores confsync supports.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (kvs.Store, io.Closer, error) {
	switch cfg.Type {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StoreCloudFront:
		s, err := cfkvs.Open(ctx, cfkvs.Options{Name: cfg.KVSName, ARN: cfg.KVSARN, Region: cfg.Region})
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

// Desired loads the configuration files and builds the entries the run
// wants to exist.
func Desired(ctx context.Context, run *config.Run) (*kvs.Data, error) {
	pairs, err := configfile.Load(ctx, run.Files)
	if err != nil {
		return nil, err
	}
	return &kvs.Data{Entries: kvs.BuildDesired(pairs, run.Build)}, nil
}

// Run performs one sync. With dryRun the plan is reported instead of
// applied. The returned error is non-nil for any run that did not fully
// succeed; per-setting failures arrive as a *kvs.SyncError.
func (r *Runner) Run(ctx context.Context, run *config.Run, dryRun bool) (*kvs.Outcome, error) {
	log := zerolog.Ctx(ctx)

	desired, err := Desired(ctx, run)
	if err != nil {
		return nil, err
	}

	limits := LimitsFor(run.Store.Type)
	if errs := desired.Validate(limits); len(errs) > 0 {
		if err := r.Report.ValidationErrors(errs); err != nil {
			return nil, err
		}
		return nil, &ValidationFailedError{Errors: errs}
	}
	if err := r.Report.Capacity(desired.Stats(limits), limits); err != nil {
		return nil, err
	}

	store, closer, err := r.Open(ctx, run.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", run.Store.Type, err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing store")
		}
	}()

	outcome, plan, err := kvs.Reconcile(ctx, store, desired, kvs.ReconcileOptions{
		Scope:  run.Build.Scope(),
		Strict: run.Strict,
		DryRun: dryRun,
	})
	if err != nil {
		return nil, err
	}

	if dryRun {
		log.Info().Msg("Dry run complete. No changes made.")
		return outcome, r.Report.Plan(plan)
	}

	for _, msg := range outcome.Messages() {
		log.Error().Msg(msg)
	}
	log.Info().
		Str("status", outcome.Status.String()).
		Int("attempted_deletes", outcome.AttemptedDeletes).
		Int("attempted_writes", outcome.AttemptedWrites).
		Int("failures", len(outcome.Messages())).
		Msg("Sync finished")

	if err := r.Report.Outcome(outcome); err != nil {
		return outcome, err
	}
	return outcome, outcome.Err()
}

// SetReadOnly locks or unlocks one setting. A locked setting fails every
// write and delete a sync attempts on it.
func (r *Runner) SetReadOnly(ctx context.Context, cfg config.StoreConfig, key string, label kvs.Label, readOnly bool) error {
	store, closer, err := r.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Type, err)
	}
	defer closer.Close()

	setter, ok := store.(ReadOnlySetter)
	if !ok {
		return fmt.Errorf("%s store does not support locking settings", cfg.Type)
	}
	if err := setter.SetReadOnly(ctx, key, label, readOnly); err != nil {
		return fmt.Errorf("updating key '%s' with label '%s': %w", key, label, err)
	}
	zerolog.Ctx(ctx).Info().
		Str("key", key).
		Str("label", label.String()).
		Bool("read_only", readOnly).
		Msg("Setting updated")
	return nil
}
