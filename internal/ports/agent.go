package ports

import (
	"context"

	"github.com/vshulcz/iischeck/internal/domain"
)

// Sink accepts metric submissions. Implementations must not block.
type Sink interface {
	Submit(name string, value float64, tags []string, kind domain.MetricKind)
}

// HostScoper is implemented by sinks that keep the series of different hosts apart.
// The returned sink attributes every submission to host; tags pass through unchanged.
type HostScoper interface {
	ForHost(host string) Sink
}

// Publisher ships drained samples to a remote collector.
type Publisher interface {
	SendBatch(ctx context.Context, items []domain.Sample) error
	SendOne(ctx context.Context, item domain.Sample) error
}
