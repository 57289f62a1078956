// Package httpjson ships samples to a remote collector as gzipped, signed JSON.
package httpjson

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/misc"
	"github.com/vshulcz/iischeck/internal/ports"
)

// Paths of the remote collector endpoints.
const (
	SamplePath  = "/sample"
	SamplesPath = "/samples"
)

// Client publishes samples to a remote collector.
type Client struct {
	base    *url.URL
	hc      *http.Client
	key     string
	backoff []time.Duration
}

var _ ports.Publisher = (*Client)(nil)

var writers = sync.Pool{New: func() any { return gzip.NewWriter(io.Discard) }}

// New returns a Client posting to serverAddr; a bare host:port gets the http scheme.
func New(serverAddr string, hc *http.Client, key string) (*Client, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	addr := strings.TrimRight(serverAddr, "/")
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("collector address: %w", err)
	}
	return &Client{base: u, hc: hc, key: strings.TrimSpace(key), backoff: misc.DefaultBackoff}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// SendOne posts a single sample to SamplePath.
func (c *Client) SendOne(ctx context.Context, s domain.Sample) error {
	return c.post(ctx, SamplePath, s)
}

// SendBatch posts samples to SamplesPath in one request. An empty batch is not sent.
func (c *Client) SendBatch(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return c.post(ctx, SamplesPath, samples)
}

// envelope is an encoded request body with the signature of its plain form.
type envelope struct {
	body []byte
	sig  string
}

func (c *Client) encode(payload any) (envelope, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal: %w", err)
	}
	body, err := compress(plain)
	if err != nil {
		return envelope{}, err
	}
	env := envelope{body: body}
	if c.key != "" {
		env.sig = misc.Sign(plain, c.key)
	}
	return env, nil
}

func compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, ok := writers.Get().(*gzip.Writer)
	if !ok {
		zw = gzip.NewWriter(io.Discard)
	}
	defer writers.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	env, err := c.encode(payload)
	if err != nil {
		return err
	}
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(env.body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		req.Header.Set("Accept-Encoding", "gzip")
		if env.sig != "" {
			req.Header.Set(misc.SignatureHeader, env.sig)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		return consume(resp)
	}
	if err := misc.Retry(ctx, c.backoff, retryable, attempt); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// consume reads and closes the response body and reports a non-200 status.
func consume(resp *http.Response) (err error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close response body: %w", cerr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("bad gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return nil
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "collector replied " + e.status
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return misc.IsTransientNet(err)
}
