// Package controller implements the unending sync loop: acquire the
// public IP, reconcile the record list, push one update per opted-in
// record, aggregate the outcomes, sleep, repeat.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cfsync/cfsync/pkg/cloudflare"
	"github.com/cfsync/cfsync/pkg/record"
	"github.com/cfsync/cfsync/pkg/source"
)

// Prometheus metrics registered on the default registry.
var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfsync_cycles_total",
		Help: "Total number of sync cycles by result.",
	}, []string{"result"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cfsync_cycle_duration_seconds",
		Help:    "Duration of sync cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	recordsManaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfsync_records_managed",
		Help: "Current number of DNS records in the reconciled list.",
	})

	recordUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfsync_record_updates_total",
		Help: "Total number of per-record update attempts by outcome.",
	}, []string{"outcome"})
)

// Reconciler merges the fetched record set with the previous list.
type Reconciler interface {
	Reconcile(ctx context.Context, previous []record.Record) ([]record.Record, error)
}

// Updater pushes a single record update to the provider.
type Updater interface {
	UpdateRecord(ctx context.Context, rec record.Record, ip netip.Addr) error
}

// Config holds controller tuning parameters.
type Config struct {
	// Interval is the sleep between cycles.
	Interval time.Duration
	// Once causes the controller to run exactly one cycle then return.
	Once bool
}

// Controller owns the record list for the lifetime of the run and
// drives it through the sync cycle. Everything is sequential: one
// cycle at a time, one record update at a time, in list order.
type Controller struct {
	source     source.Source
	reconciler Reconciler
	updater    Updater
	records    []record.Record
	log        *slog.Logger
	cfg        Config
	ready      atomic.Bool // set true after the first successful reconcile
}

// New returns a Controller seeded with the persisted record list.
func New(src source.Source, rec Reconciler, upd Updater, initial []record.Record, log *slog.Logger, cfg Config) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		source:     src,
		reconciler: rec,
		updater:    upd,
		records:    initial,
		log:        log,
		cfg:        cfg,
	}
}

// IsReady reports whether at least one reconciliation has succeeded.
// Used by the health server to gate the readiness endpoint.
func (c *Controller) IsReady() bool {
	return c.ready.Load()
}

// Records returns the current reconciled list. Only meaningful after
// Run has returned (Once mode); the loop owns the list while running.
func (c *Controller) Records() []record.Record {
	return c.records
}

// Run starts the sync loop and blocks until ctx is cancelled. The first
// iteration runs immediately; every later iteration waits the full
// interval first, even after a skipped cycle. Nothing inside a cycle
// terminates the loop.
func (c *Controller) Run(ctx context.Context) error {
	first := true
	for {
		if !first {
			c.log.Info(fmt.Sprintf("Waiting %d seconds to restart...", int(c.cfg.Interval/time.Second)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Interval):
			}
		}
		first = false

		c.cycle(ctx)

		if c.cfg.Once {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// cycle runs one full iteration: IP, reconcile, updates, summary.
func (c *Controller) cycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	ip, err := c.source.PublicIP(ctx)
	if err != nil {
		c.log.Error("Couldn't get public ip address", "err", err)
		c.log.Error("Retrying...")
		cyclesTotal.WithLabelValues("skipped").Inc()
		return
	}
	c.log.Info("Successfully obtained public ip address")

	// The record topology must be known before any update decision is
	// made, so a fetch failure retries the reconciliation immediately
	// and without limit. Only shutdown breaks the loop.
	c.log.Info("Attempting to retrieve DNS records")
	for {
		reconciled, err := c.reconciler.Reconcile(ctx, c.records)
		if err == nil {
			c.records = reconciled
			break
		}
		if ctx.Err() != nil {
			cyclesTotal.WithLabelValues("skipped").Inc()
			return
		}
		c.logFetchError(err)
		c.log.Error("Retrying...")
	}
	c.log.Info("Successfully obtained DNS records")
	c.ready.Store(true)
	recordsManaged.Set(float64(len(c.records)))

	attempted, succeeded := c.updateAll(ctx, ip)
	c.summarize(attempted, succeeded)
}

// updateAll pushes the new IP to every opted-in record, sequentially,
// in list order. No failure aborts the pass.
func (c *Controller) updateAll(ctx context.Context, ip netip.Addr) (attempted, succeeded int) {
	for _, rec := range c.records {
		if rec.Sync != record.SyncEnabled {
			recordUpdatesTotal.WithLabelValues(record.OutcomeSkipped.String()).Inc()
			continue
		}
		attempted++
		if err := c.updater.UpdateRecord(ctx, rec, ip); err != nil {
			recordUpdatesTotal.WithLabelValues(record.OutcomeFailed.String()).Inc()
			c.logUpdateError(rec, err)
			continue
		}
		recordUpdatesTotal.WithLabelValues(record.OutcomeUpdated.String()).Inc()
		succeeded++
		c.log.Info(fmt.Sprintf("Successfully set ip for %s", rec.Name))
	}
	return attempted, succeeded
}

// summarize logs exactly one of the four cycle summaries. The partial
// summary counts successes against the whole record list, skipped
// records included.
func (c *Controller) summarize(attempted, succeeded int) {
	switch {
	case attempted == 0:
		c.log.Info("No records were changed")
		cyclesTotal.WithLabelValues("success").Inc()
	case succeeded == attempted:
		c.log.Info("All records changed successfully!")
		cyclesTotal.WithLabelValues("success").Inc()
	case succeeded > 0:
		c.log.Warn(fmt.Sprintf("Only %d out of %d records were changed successfully", succeeded, len(c.records)))
		cyclesTotal.WithLabelValues("partial").Inc()
	default:
		c.log.Warn("All record changes failed")
		cyclesTotal.WithLabelValues("failure").Inc()
	}
}

// logFetchError maps the tagged fetch reasons onto the log severity the
// operator should see.
func (c *Controller) logFetchError(err error) {
	var fe *cloudflare.FetchError
	if !errors.As(err, &fe) {
		c.log.Error("Retrieving DNS records failed", "err", err)
		return
	}
	switch fe.Reason {
	case cloudflare.FetchMissingSuccess:
		c.log.Warn(fmt.Sprintf("The cloudflare request was unsuccessful. Here's the result: %s", fe.Body))
	default:
		c.log.Error("Retrieving DNS records failed", "reason", fe.Reason.String(), "err", err)
	}
}

// logUpdateError maps the tagged update reasons onto log severity.
func (c *Controller) logUpdateError(rec record.Record, err error) {
	var ue *cloudflare.UpdateError
	if !errors.As(err, &ue) {
		c.log.Error(fmt.Sprintf("Updating %s failed", rec.Name), "err", err)
		return
	}
	switch ue.Reason {
	case cloudflare.UpdateBodyDecode:
		c.log.Warn("Failed to convert cloudflare's result into a string, retrying...")
	case cloudflare.UpdateRejected:
		c.log.Warn(fmt.Sprintf("The cloudflare request was unsuccessful. Here's the result:\n%s", ue.Body))
	default:
		c.log.Error("The update request failed", "record", rec.Name, "err", err)
		c.log.Error("Retrying...")
	}
}
