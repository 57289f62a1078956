//go:build windows

package wmi

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufpapurcu/wmi"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

const probeQuery = "SELECT Caption FROM Win32_OperatingSystem"

type osProbe struct {
	Caption string
}

// Connector opens SWbemServices connections.
type Connector struct {
	timeout time.Duration
}

var _ ports.Connector = (*Connector)(nil)

// New returns a Connector whose queries give up after timeout (0 disables the limit).
func New(timeout time.Duration) *Connector {
	return &Connector{timeout: timeout}
}

// Connect starts a COM worker and checks the target answers a trivial query.
func (c *Connector) Connect(ctx context.Context, t ports.Target) (ports.Conn, error) {
	client := &wmi.Client{PtrNil: true, AllowMissingFields: true}
	svc, err := wmi.InitializeSWbemServices(client)
	if err != nil {
		return nil, fmt.Errorf("%w: wmi init: %w", domain.ErrConnectivity, err)
	}
	conn := &Conn{svc: svc, args: connectArgs(t.Host, t.Username, t.Password), timeout: c.timeout}

	if _, err := run(ctx, conn, probeQuery, func(q string, args ...any) ([]osProbe, error) {
		var dst []osProbe
		err := svc.Query(q, &dst, args...)
		return dst, err
	}); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnectivity, t.Host, err)
	}
	return conn, nil
}

// Conn is a live SWbemServices connection to one host.
type Conn struct {
	svc     *wmi.SWbemServices
	args    []any
	timeout time.Duration
}

var _ ports.Conn = (*Conn)(nil)

// QueryEntities runs SELECT * over class and returns one record per instance.
func (c *Conn) QueryEntities(ctx context.Context, class string) ([]domain.EntityRecord, error) {
	rows, err := run(ctx, c, "SELECT * FROM "+class, func(q string, args ...any) ([]webService, error) {
		var dst []webService
		err := c.svc.Query(q, &dst, args...)
		return dst, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrQuery, class, err)
	}
	return records(rows), nil
}

// Close stops the COM worker.
func (c *Conn) Close() error {
	return c.svc.Close()
}

type result[T any] struct {
	rows []T
	err  error
}

// run executes a query on its own goroutine so ctx and the timeout can abandon it.
func run[T any](ctx context.Context, c *Conn, query string, q func(string, ...any) ([]T, error)) ([]T, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ch := make(chan result[T], 1)
	go func() {
		rows, err := q(query, c.args...)
		ch <- result[T]{rows: rows, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.rows, r.err
	}
}
