package ports

import (
	"context"

	"github.com/vshulcz/iischeck/internal/domain"
)

// Target identifies the counter provider of one configured instance.
type Target struct {
	Host     string
	Username string
	Password string
}

// Connector opens connections to a counter provider.
type Connector interface {
	// Connect fails with domain.ErrConnectivity when the host is unreachable or rejects the credentials.
	Connect(ctx context.Context, t Target) (Conn, error)
}

// Conn is an established provider connection.
type Conn interface {
	// QueryEntities returns the per-entity records of a provider class, in provider order.
	QueryEntities(ctx context.Context, class string) ([]domain.EntityRecord, error)
	Close() error
}
