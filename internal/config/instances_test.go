package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseInstances(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
		check   func(t *testing.T, got []Instance)
	}{
		{
			name: "local host default and tags",
			doc: `
instances:
  - tags: ["env:prod", "role:web"]
  - host: web02
    username: svc
    password: secret
    interval: 30s
`,
			check: func(t *testing.T, got []Instance) {
				require.Len(t, got, 2)
				require.Equal(t, LocalHost, got[0].Host)
				require.Equal(t, []string{"env:prod", "role:web"}, got[0].Tags)
				require.Equal(t, "web02", got[1].Host)
				require.Equal(t, 30*time.Second, got[1].Interval)
				require.Equal(t, "secret", got[1].Target().Password)
			},
		},
		{name: "empty document", doc: "", wantErr: "validate instances"},
		{name: "unknown key", doc: "instances:\n  - hots: web01\n", wantErr: "decode instances"},
		{name: "empty tag", doc: "instances:\n  - tags: [\"a:b\", \"\"]\n", wantErr: "Tags[1]"},
		{name: "password without user", doc: "instances:\n  - host: h\n    password: x\n", wantErr: "Username"},
		{name: "both password sources", doc: "instances:\n  - username: u\n    password: x\n    password_env: PW\n", wantErr: "Password"},
		{name: "negative interval", doc: "instances:\n  - interval: -5s\n", wantErr: "Interval"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseInstances(strings.NewReader(tc.doc))
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, got)
		})
	}
}

func TestInstance_TargetPasswordEnv(t *testing.T) {
	t.Setenv("IIS_TEST_PW", "from-env")
	in := Instance{Host: " web03 ", Username: "svc", PasswordEnv: "IIS_TEST_PW"}
	tg := in.Target()
	require.Equal(t, "web03", tg.Host)
	require.Equal(t, "svc", tg.Username)
	require.Equal(t, "from-env", tg.Password)
}

func TestLoadInstances_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadInstances(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "open instances")
}

func TestWatchInstances_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instances.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instances:\n  - host: a\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan []Instance, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchInstances(ctx, zaptest.NewLogger(t), path, func(l []Instance) { got <- l })
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var list []Instance
loop:
	for {
		select {
		case list = <-got:
			if len(list) == 1 && list[0].Host == "b" {
				break loop
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("instances:\n  - host: b\n"), 0o600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
