// Package reconcile merges the remotely-fetched record set with the
// locally-remembered sync decisions. A record's id uniquely determines
// its decision across cycles for as long as the provider keeps
// returning that id; decisions never leak across different ids even if
// names or contents coincide.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/cfsync/cfsync/pkg/record"
)

// Lister is the narrow fetch interface of the remote provider.
type Lister interface {
	ListRecords(ctx context.Context) ([]record.Record, error)
}

// Saver persists the reconciled record list. A persistence failure is
// logged but never aborts a cycle.
type Saver interface {
	SaveRecords(records []record.Record) error
}

// Selector is the interactive collaborator that resolves sync decisions
// for newly-discovered records. It returns the set of chosen ids; every
// candidate not chosen is disabled.
type Selector interface {
	SelectRecordsToSync(candidates []record.Record) (map[string]bool, error)
}

// Reconciler merges fetch results with previous decisions and persists
// the outcome.
type Reconciler struct {
	lister   Lister
	saver    Saver
	selector Selector // nil when the process is not interactive
	log      *slog.Logger
}

// New returns a Reconciler. selector may be nil; newly-discovered
// records then stay undecided and are treated as not synced.
func New(lister Lister, saver Saver, selector Selector, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{lister: lister, saver: saver, selector: selector, log: log}
}

// Reconcile fetches the remote record set and merges it with previous.
// The fetched list replaces the previous list in its entirety: records
// the provider no longer reports are dropped, new ids are added. Each
// fetched record inherits the previous decision for its id; records
// with no decision are put to the selector when one is available. The
// merged list is persisted and returned. A fetch failure returns the
// error untouched so the caller can retry the whole operation.
func (r *Reconciler) Reconcile(ctx context.Context, previous []record.Record) ([]record.Record, error) {
	fetched, err := r.lister.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	decisions := make(map[string]record.SyncState, len(previous))
	for _, prev := range previous {
		if prev.Sync != record.SyncUndecided {
			decisions[prev.ID] = prev.Sync
		}
	}

	var undecided []record.Record
	for i := range fetched {
		if state, ok := decisions[fetched[i].ID]; ok {
			fetched[i].Sync = state
		} else {
			undecided = append(undecided, fetched[i])
		}
	}

	if len(undecided) > 0 && r.selector != nil {
		chosen, err := r.selector.SelectRecordsToSync(undecided)
		if err != nil {
			// Selection failing is not worth losing the cycle over;
			// the records stay undecided and are not synced.
			r.log.Error("Failed to select records", "err", err)
		} else {
			for i := range fetched {
				if fetched[i].Sync != record.SyncUndecided {
					continue
				}
				if chosen[fetched[i].ID] {
					fetched[i].Sync = record.SyncEnabled
				} else {
					fetched[i].Sync = record.SyncDisabled
				}
			}
		}
	}

	if err := r.saver.SaveRecords(fetched); err != nil {
		r.log.Warn("Failed to save config", "err", err)
	} else {
		r.log.Info("Saved config successfully")
	}

	return fetched, nil
}
