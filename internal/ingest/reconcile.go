package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReconcileReport summarizes one sweep over both stores.
type ReconcileReport struct {
	RecordsChecked int
	BlobsChecked   int
	// DanglingRecords are blob keys of committed metadata rows whose
	// blob is missing. Reads of these records fail with
	// ErrInconsistentState until an operator intervenes.
	DanglingRecords []string
	// OrphanBlobs are blobs no metadata row points to, typically left
	// by a crash inside the upload compensation window.
	OrphanBlobs []string
}

// Clean reports whether the sweep found nothing to complain about.
func (r *ReconcileReport) Clean() bool {
	return len(r.DanglingRecords) == 0 && len(r.OrphanBlobs) == 0
}

// Reconcile cross-checks the metadata store against the blob store.
// It only observes and reports; cleanup is an operator decision.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	records, err := s.meta.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list metadata: %v", ErrStorage, err)
	}
	keys, err := s.blobs.Keys()
	if err != nil {
		return nil, fmt.Errorf("%w: list blobs: %v", ErrStorage, err)
	}

	owned := make(map[string]bool, len(records))
	report := &ReconcileReport{RecordsChecked: len(records)}

	for _, rec := range records {
		key := rec.BlobKey()
		owned[key] = true
		if !s.blobs.Exists(key) {
			report.DanglingRecords = append(report.DanglingRecords, key)
		}
	}

	for _, key := range keys {
		// Thumbnail blobs are derived artifacts owned by their source
		// record's artwork job, not by a metadata row.
		if isThumbnailKey(key) {
			continue
		}
		report.BlobsChecked++
		if !owned[key] {
			report.OrphanBlobs = append(report.OrphanBlobs, key)
		}
	}

	reconcileRunsTotal.Inc()
	reconcileIssuesTotal.WithLabelValues("dangling_record").Add(float64(len(report.DanglingRecords)))
	reconcileIssuesTotal.WithLabelValues("orphan_blob").Add(float64(len(report.OrphanBlobs)))

	if !report.Clean() {
		s.logger.Warn("reconciliation found inconsistencies",
			zap.Strings("dangling_records", report.DanglingRecords),
			zap.Strings("orphan_blobs", report.OrphanBlobs),
		)
	}
	return report, nil
}

func isThumbnailKey(key string) bool {
	return strings.Contains(key, "-cover-") && strings.HasSuffix(key, ".jpg")
}

// Reconciler runs periodic sweeps in the background.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewReconciler(svc *Service, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		svc:      svc,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to halt it.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
}

// Stop halts the loop and waits for the current sweep to finish.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.svc.Reconcile(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}
