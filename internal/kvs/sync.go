package kvs

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog"
)

// Store abstracts the remote configuration store.
type Store interface {
	// List yields every entry passing the filter. The sequence may page
	// internally; a yielded error ends it.
	List(ctx context.Context, filter Filter) iter.Seq2[RemoteEntry, error]
	// Upsert sets the entry's value at its (key, label) unconditionally.
	Upsert(ctx context.Context, e Entry) error
	// Delete removes the entry identified exactly as listed.
	Delete(ctx context.Context, e RemoteEntry) error
}

// ListInScope drains the store listing for a scope. Entries a store returns
// outside the scope are dropped.
func ListInScope(ctx context.Context, store Store, scope Scope) ([]RemoteEntry, error) {
	log := zerolog.Ctx(ctx)
	filter := scope.Filter()

	var entries []RemoteEntry
	for e, err := range store.List(ctx, filter) {
		if err != nil {
			return nil, fmt.Errorf("listing store entries: %w", err)
		}
		if !scope.Contains(e) {
			log.Debug().Str("key", e.Key).Str("label", e.Label.String()).Msg("Ignoring entry outside scope")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ComputeDeletions returns the remote entries whose key is absent from the
// desired set, in listing order.
func ComputeDeletions(remote []RemoteEntry, desired []Entry) []RemoteEntry {
	keep := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		keep[e.Key] = struct{}{}
	}

	var deletes []RemoteEntry
	for _, e := range remote {
		if _, ok := keep[e.Key]; !ok {
			deletes = append(deletes, e)
		}
	}
	return deletes
}

// ComputeSyncPlan compares desired state against the remote entries in
// scope. Every desired entry is put, changed or not; deletions are only
// planned in strict mode.
func ComputeSyncPlan(desired *Data, remote []RemoteEntry, strict bool) *SyncPlan {
	plan := &SyncPlan{Puts: desired.Entries}
	if strict {
		plan.Deletes = ComputeDeletions(remote, desired.Entries)
	}
	return plan
}

// ApplyResult collects the failure messages of one apply pass.
type ApplyResult struct {
	FailedDeletes []string
	FailedWrites  []string
}

// Apply runs every delete then every put, one at a time. A failed
// operation is recorded and the pass continues; nothing is retried.
func Apply(ctx context.Context, store Store, plan *SyncPlan) ApplyResult {
	log := zerolog.Ctx(ctx)
	var res ApplyResult

	for _, e := range plan.Deletes {
		log.Info().Msg(describe("Deleting", e.Key, e.Label))
		if err := store.Delete(ctx, e); err != nil {
			msg := FailureMessage(OpDelete, e.Key, e.Label, err)
			log.Debug().Err(err).Str("key", e.Key).Msg("Delete failed")
			res.FailedDeletes = append(res.FailedDeletes, msg)
		}
	}

	for _, e := range plan.Puts {
		log.Info().Msg(describe("Adding", e.Key, e.Label))
		if err := store.Upsert(ctx, e); err != nil {
			msg := FailureMessage(OpAdd, e.Key, e.Label, err)
			log.Debug().Err(err).Str("key", e.Key).Msg("Upsert failed")
			res.FailedWrites = append(res.FailedWrites, msg)
		}
	}

	return res
}

// ReconcileOptions controls one reconciliation.
type ReconcileOptions struct {
	Scope  Scope
	Strict bool
	// DryRun computes the plan without touching the store beyond listing.
	DryRun bool
}

// Reconcile brings the store's scope in line with desired. Listing errors
// abort the run; per-operation errors only shape the returned Outcome.
func Reconcile(ctx context.Context, store Store, desired *Data, opts ReconcileOptions) (*Outcome, *SyncPlan, error) {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Determining which keys to sync")

	var remote []RemoteEntry
	if opts.Strict {
		var err error
		remote, err = ListInScope(ctx, store, opts.Scope)
		if err != nil {
			return nil, nil, err
		}
	}

	plan := ComputeSyncPlan(desired, remote, opts.Strict)
	log.Info().
		Int("puts", len(plan.Puts)).
		Int("deletes", len(plan.Deletes)).
		Bool("strict", opts.Strict).
		Msg("Computed sync plan")

	if opts.DryRun {
		return Summarize(0, nil, 0, nil), plan, nil
	}

	res := Apply(ctx, store, plan)
	return Summarize(len(plan.Deletes), res.FailedDeletes, len(plan.Puts), res.FailedWrites), plan, nil
}
