package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/pkg/observer"
)

// PassLogger logs one summary line per pass.
func PassLogger(log *zap.Logger) observer.Observer[domain.PassReport] {
	return observer.ObserverFunc[domain.PassReport](func(_ context.Context, r domain.PassReport) error {
		fields := []zap.Field{
			zap.String("host", r.Host),
			zap.Duration("duration", r.Duration),
			zap.Int("sites", r.Entities),
			zap.Int("submitted", r.Submitted),
			zap.Int("missing", r.Missing),
			zap.Int("conversion_failures", r.Conversions),
		}
		switch {
		case r.Err == nil:
			log.Info("pass complete", fields...)
		case errors.Is(r.Err, domain.ErrConnectivity) && !errors.Is(r.Err, domain.ErrQuery):
			log.Warn("pass skipped, host unreachable", append(fields, zap.Error(r.Err))...)
		default:
			log.Warn("pass failed", append(fields, zap.Error(r.Err))...)
		}
		return nil
	})
}
