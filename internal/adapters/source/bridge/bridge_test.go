package bridge

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

const class = "Win32_PerfFormattedData_W3SVC_WebService"

type fakeBridge struct {
	user, pass string
	body       string
	status     int
	gzip       bool
}

func (f fakeBridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	auth := func(w http.ResponseWriter, r *http.Request) bool {
		if f.user == "" {
			return true
		}
		u, p, ok := r.BasicAuth()
		if !ok || u != f.user || p != f.pass {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if auth(w, r) {
			w.WriteHeader(http.StatusOK)
		}
	})
	mux.HandleFunc("/classes/"+class+"/instances", func(w http.ResponseWriter, r *http.Request) {
		if !auth(w, r) {
			return
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if f.gzip {
			w.Header().Set("Content-Encoding", "gzip")
			zw := gzip.NewWriter(w)
			if _, err := zw.Write([]byte(f.body)); err != nil {
				t.Errorf("write: %v", err)
			}
			_ = zw.Close()
			return
		}
		_, _ = w.Write([]byte(f.body))
	})
	return mux
}

const twoSites = `[
	{"Name": "_Total", "ServiceUptime": 999},
	{"Name": "Default Web Site", "ServiceUptime": 120, "TotalBytesSent": 4096, "Broken": "n/a", "TotalFilesSent": null}
]`

func connect(t *testing.T, srv *httptest.Server, target ports.Target) (ports.Conn, error) {
	t.Helper()
	c := New("", srv.Client())
	c.backoff = nil
	target.Host = srv.URL
	return c.Connect(context.Background(), target)
}

func TestQueryEntities(t *testing.T) {
	for _, gz := range []bool{false, true} {
		srv := httptest.NewServer(fakeBridge{user: "admin", pass: "pw", body: twoSites, gzip: gz}.handler(t))

		conn, err := connect(t, srv, ports.Target{Username: "admin", Password: "pw"})
		require.NoError(t, err)

		recs, err := conn.QueryEntities(context.Background(), class)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Equal(t, "_Total", recs[0].Name)
		require.Equal(t, "Default Web Site", recs[1].Name)

		v, ok := recs[1].Counter("TotalBytesSent")
		require.True(t, ok)
		require.Equal(t, json.Number("4096"), v)
		_, ok = recs[1].Counter("Name")
		require.False(t, ok, "Name must not be exposed as a counter")
		_, ok = recs[1].Counter("TotalFilesSent")
		require.False(t, ok, "null reads as a missing counter")

		_, err = domain.ToFloat(recs[1].Counters["Broken"])
		require.ErrorIs(t, err, domain.ErrConversion)

		require.NoError(t, conn.Close())
		srv.Close()
	}
}

func TestConnect_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(fakeBridge{user: "admin", pass: "pw"}.handler(t))
	defer srv.Close()

	_, err := connect(t, srv, ports.Target{Username: "admin", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrConnectivity)
	require.Contains(t, err.Error(), "credentials rejected")
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New("", &http.Client{Timeout: time.Second})
	c.backoff = []time.Duration{time.Millisecond}
	_, err := c.Connect(context.Background(), ports.Target{Host: addr})
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestQueryEntities_BridgeGoneAfterConnect(t *testing.T) {
	srv := httptest.NewServer(fakeBridge{body: twoSites}.handler(t))
	conn, err := connect(t, srv, ports.Target{})
	require.NoError(t, err)
	srv.Close()

	_, err = conn.QueryEntities(context.Background(), class)
	require.ErrorIs(t, err, domain.ErrQuery)
	require.NotErrorIs(t, err, domain.ErrConnectivity)
}

func TestQueryEntities_Failures(t *testing.T) {
	tests := []struct {
		name string
		fb   fakeBridge
	}{
		{"server_error", fakeBridge{status: http.StatusInternalServerError}},
		{"not_json", fakeBridge{body: "<html>"}},
		{"object_not_array", fakeBridge{body: `{"Name":"x"}`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.fb.handler(t))
			defer srv.Close()

			conn, err := connect(t, srv, ports.Target{})
			require.NoError(t, err)
			_, err = conn.QueryEntities(context.Background(), class)
			require.True(t, errors.Is(err, domain.ErrQuery), "err=%v", err)
		})
	}
}

func TestBaseURL(t *testing.T) {
	c := New("https://"+HostPlaceholder+":8443/wmi/", nil)
	cases := map[string]string{
		"web01":              "https://web01:8443/wmi",
		"":                   "https://localhost:8443/wmi",
		".":                  "https://localhost:8443/wmi",
		"http://10.0.0.5:81": "http://10.0.0.5:81",
	}
	for in, want := range cases {
		u, err := c.baseURL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, u.String(), in)
	}

	_, err := New("/relative/"+HostPlaceholder, nil).baseURL("web01")
	require.Error(t, err)
}
