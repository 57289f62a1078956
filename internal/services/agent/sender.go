package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

// BatchPublisher ships sample batches with a fixed number of workers.
// A failed batch is retried sample by sample.
type BatchPublisher struct {
	log     *zap.Logger
	pub     ports.Publisher
	jobs    chan []domain.Sample
	wg      sync.WaitGroup
	workers int
}

func NewBatchPublisher(log *zap.Logger, pub ports.Publisher, workers int) *BatchPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	return &BatchPublisher{
		log:     log,
		pub:     pub,
		workers: workers,
		jobs:    make(chan []domain.Sample, workers*2),
	}
}

func (bp *BatchPublisher) Start(ctx context.Context) {
	for i := range bp.workers {
		bp.wg.Add(1)
		go func(id int) {
			defer bp.wg.Done()
			for batch := range bp.jobs {
				bp.send(ctx, id, batch)
			}
		}(i + 1)
	}
}

func (bp *BatchPublisher) send(ctx context.Context, id int, batch []domain.Sample) {
	if len(batch) == 0 {
		return
	}
	err := bp.pub.SendBatch(ctx, batch)
	if err == nil {
		return
	}
	bp.log.Warn("batch send failed, falling back to single requests",
		zap.Int("worker", id), zap.Int("size", len(batch)), zap.Error(err))
	for _, s := range batch {
		if ctx.Err() != nil {
			return
		}
		if err := bp.pub.SendOne(ctx, s); err != nil {
			bp.log.Error("send single failed", zap.Int("worker", id), zap.String("metric", s.Name), zap.Error(err))
		}
	}
}

// Stop closes the queue and waits for in-flight batches.
func (bp *BatchPublisher) Stop() {
	close(bp.jobs)
	bp.wg.Wait()
}

// Submit enqueues batch, blocking while every worker is busy and the queue is full.
func (bp *BatchPublisher) Submit(batch []domain.Sample) {
	bp.jobs <- batch
}
