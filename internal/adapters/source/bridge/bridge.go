// Package bridge reads provider counters from a remote HTTP counter bridge.
//
// A bridge exposes, per host:
//
//	GET /ping                          200 when the credentials are accepted
//	GET /classes/{class}/instances     JSON array of objects, one per entity
//
// Each entity object carries a "Name" string and one member per counter.
package bridge

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/misc"
	"github.com/vshulcz/iischeck/internal/ports"
)

// HostPlaceholder is replaced by the instance host in the URL template.
const HostPlaceholder = "{host}"

// DefaultTemplate is used when no bridge URL template is configured.
const DefaultTemplate = "http://" + HostPlaceholder + ":8089"

const nameField = "Name"

// Connector opens bridge connections for configured instances.
type Connector struct {
	hc       *http.Client
	template string
	backoff  []time.Duration
}

var _ ports.Connector = (*Connector)(nil)

// New returns a Connector resolving hosts through template, e.g. "https://{host}:8443/wmi".
func New(template string, hc *http.Client) *Connector {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Connector{hc: hc, template: template, backoff: misc.DefaultBackoff}
}

func (c *Connector) baseURL(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" || host == "." {
		host = "localhost"
	}
	raw := host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		raw = strings.ReplaceAll(c.template, HostPlaceholder, host)
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bridge url %q has no scheme or host", raw)
	}
	return u, nil
}

// Connect resolves the bridge of t.Host and checks it accepts t's credentials.
func (c *Connector) Connect(ctx context.Context, t ports.Target) (ports.Conn, error) {
	base, err := c.baseURL(t.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	conn := &Conn{base: base, hc: c.hc, user: t.Username, pass: t.Password, backoff: c.backoff}

	resp, err := conn.get(ctx, "/ping")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnectivity, base.Host, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s: credentials rejected (%s)", domain.ErrConnectivity, base.Host, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s: ping status %s", domain.ErrConnectivity, base.Host, resp.Status)
	}
	return conn, nil
}

// Conn is an established bridge connection.
type Conn struct {
	base    *url.URL
	hc      *http.Client
	user    string
	pass    string
	backoff []time.Duration
}

var _ ports.Conn = (*Conn)(nil)

// QueryEntities fetches the instances of class. Numbers are kept as json.Number;
// null properties are left out of the record, as the WMI source does.
func (c *Conn) QueryEntities(ctx context.Context, class string) ([]domain.EntityRecord, error) {
	resp, err := c.get(ctx, "/classes/"+url.PathEscape(class)+"/instances")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrQuery, class, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s: status %s", domain.ErrQuery, class, resp.Status)
	}

	var body io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: bad gzip: %w", domain.ErrQuery, err)
		}
		defer gr.Close()
		body = gr
	}

	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrQuery, class, err)
	}

	out := make([]domain.EntityRecord, 0, len(raw))
	for _, obj := range raw {
		name, _ := obj[nameField].(string)
		delete(obj, nameField)
		for k, v := range obj {
			if v == nil {
				delete(obj, k)
			}
		}
		out = append(out, domain.EntityRecord{Name: name, Counters: obj})
	}
	return out, nil
}

// Close releases idle connections held for this bridge.
func (c *Conn) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *Conn) get(ctx context.Context, path string) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")
		if c.user != "" {
			req.SetBasicAuth(c.user, c.pass)
		}
		r, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	if err := misc.Retry(ctx, c.backoff, misc.IsTransientNet, op); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	return resp, nil
}
