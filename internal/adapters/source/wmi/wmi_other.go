//go:build !windows

package wmi

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

// Connector reports WMI as unavailable outside Windows.
type Connector struct{}

var _ ports.Connector = (*Connector)(nil)

// New returns a Connector. The timeout is accepted for signature parity.
func New(time.Duration) *Connector {
	return &Connector{}
}

// Connect always fails with domain.ErrConnectivity.
func (*Connector) Connect(context.Context, ports.Target) (ports.Conn, error) {
	return nil, fmt.Errorf("%w: wmi is not available on %s", domain.ErrConnectivity, runtime.GOOS)
}
