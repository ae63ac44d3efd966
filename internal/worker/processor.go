// Package worker runs deferred cover-art extraction for committed
// uploads. Jobs are queued by the ingestion service and polled from the
// metadata store; a job failure never affects the committed record.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/audiokeep/audiokeep/internal/metadata"
	"github.com/audiokeep/audiokeep/internal/tags"
)

// PathResolver maps a blob key to its on-disk location for the
// container parser.
type PathResolver interface {
	FullPath(key string) string
}

// Config wires an ArtworkWorker.
type Config struct {
	Meta         metadata.Store
	Paths        PathResolver
	Renderer     *Renderer
	Extractor    tags.Extractor
	Logger       *zap.Logger
	PollInterval time.Duration
}

// ArtworkWorker polls the job queue and renders thumbnails for records
// whose containers carry embedded artwork.
type ArtworkWorker struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *ArtworkWorker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &ArtworkWorker{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start launches the poll loop.
func (w *ArtworkWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	w.cfg.Logger.Info("artwork worker started", zap.Duration("poll_interval", w.cfg.PollInterval))
}

// Stop halts the loop and waits for the in-flight job, if any.
func (w *ArtworkWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	w.cfg.Logger.Info("artwork worker stopped")
}

func (w *ArtworkWorker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before going back to sleep.
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.cfg.Logger.Error("artwork job failed", zap.Error(err))
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessOne claims and handles a single pending job. It reports false
// when the queue is empty. A record without embedded artwork completes
// the job with no thumbnails; that is not a failure.
func (w *ArtworkWorker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.cfg.Meta.NextPendingArtworkJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	rec, err := w.cfg.Meta.Get(ctx, job.AudioID)
	if err != nil {
		w.fail(ctx, job.ID, "record not found")
		return true, err
	}

	data, _, err := w.cfg.Extractor.CoverArt(ctx, w.cfg.Paths.FullPath(rec.BlobKey()))
	if errors.Is(err, tags.ErrNoArtwork) {
		if err := w.cfg.Meta.CompleteArtworkJob(ctx, job.ID, nil); err != nil {
			return true, err
		}
		return true, nil
	}
	if err != nil {
		w.fail(ctx, job.ID, err.Error())
		return true, err
	}

	keys, err := w.cfg.Renderer.Render(rec.BlobKey(), data)
	if err != nil {
		w.fail(ctx, job.ID, err.Error())
		return true, err
	}

	if err := w.cfg.Meta.CompleteArtworkJob(ctx, job.ID, keys); err != nil {
		return true, err
	}
	w.cfg.Logger.Info("artwork rendered",
		zap.Uint64("audio_id", job.AudioID),
		zap.Strings("thumbnails", keys),
	)
	return true, nil
}

func (w *ArtworkWorker) fail(ctx context.Context, jobID int64, reason string) {
	if err := w.cfg.Meta.FailArtworkJob(ctx, jobID, reason); err != nil {
		w.cfg.Logger.Error("marking artwork job failed", zap.Int64("job_id", jobID), zap.Error(err))
	}
}
