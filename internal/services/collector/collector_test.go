package collector

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vshulcz/iischeck/internal/domain"
)

type submission struct {
	name  string
	kind  domain.MetricKind
	tags  []string
	value float64
}

type recordingSink struct {
	mu  sync.Mutex
	got []submission
}

func (s *recordingSink) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	s.mu.Lock()
	s.got = append(s.got, submission{name: name, value: value, tags: append([]string(nil), tags...), kind: kind})
	s.mu.Unlock()
}

type fakeConn struct {
	records []domain.EntityRecord
	err     error
	class   string
	queries int
}

func (f *fakeConn) QueryEntities(_ context.Context, class string) ([]domain.EntityRecord, error) {
	f.queries++
	f.class = class
	return f.records, f.err
}

func (f *fakeConn) Close() error { return nil }

var scenarioTable = []domain.Mapping{
	{Name: "iis.uptime", Kind: domain.Gauge, Counter: "ServiceUptime"},
	{Name: "iis.net.bytes_sent", Kind: domain.Rate, Counter: "TotalBytesSent"},
}

func newObserved(table []domain.Mapping) (*Collector, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core), WebServiceClass, table), logs
}

func errorLogs(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.FilterLevelExact(zapcore.ErrorLevel).AllUntimed()
}

func TestCollect_Scenario(t *testing.T) {
	t.Parallel()

	c, logs := newObserved(scenarioTable)
	conn := &fakeConn{records: []domain.EntityRecord{
		{Name: "_Total", Counters: map[string]any{"ServiceUptime": 999}},
		{Name: "Default Web Site", Counters: map[string]any{"ServiceUptime": uint32(120), "TotalBytesSent": "4096"}},
	}}
	sink := &recordingSink{}

	rep := c.Collect(context.Background(), conn, sink, "web01", []string{"env:prod"})

	want := []submission{
		{name: "iis.uptime", value: 120, tags: []string{"env:prod", "site:Default Web Site"}, kind: domain.Gauge},
		{name: "iis.net.bytes_sent", value: 4096, tags: []string{"env:prod", "site:Default Web Site"}, kind: domain.Rate},
	}
	if !reflect.DeepEqual(sink.got, want) {
		t.Fatalf("submissions:\n got %+v\nwant %+v", sink.got, want)
	}
	if conn.queries != 1 || conn.class != WebServiceClass {
		t.Fatalf("queries=%d class=%q", conn.queries, conn.class)
	}
	if rep.Err != nil || rep.Submitted != 2 || rep.Aggregates != 1 || rep.Entities != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if n := len(errorLogs(logs)); n != 0 {
		t.Fatalf("error logs=%d want 0", n)
	}
}

func TestCollect_MissingCounter(t *testing.T) {
	t.Parallel()

	c, logs := newObserved(scenarioTable)
	conn := &fakeConn{records: []domain.EntityRecord{
		{Name: "Default Web Site", Counters: map[string]any{"ServiceUptime": 120}},
	}}
	sink := &recordingSink{}

	rep := c.Collect(context.Background(), conn, sink, "", nil)

	if len(sink.got) != 1 || sink.got[0].name != "iis.uptime" {
		t.Fatalf("submissions=%+v, want only iis.uptime", sink.got)
	}
	entries := errorLogs(logs)
	if len(entries) != 1 {
		t.Fatalf("error logs=%d want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["metric"] != "iis.net.bytes_sent" || fields["counter"] != "TotalBytesSent" {
		t.Fatalf("missing-counter log fields=%v", fields)
	}
	if rep.Missing != 1 || rep.Submitted != 1 || rep.Err != nil {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestCollect_QueryFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		conn    *fakeConn
		nilConn bool
		wantErr error
	}{
		{name: "provider_error", conn: &fakeConn{err: errors.New("rpc server unavailable")}, wantErr: domain.ErrQuery},
		{name: "empty_result", conn: &fakeConn{records: []domain.EntityRecord{}}, wantErr: domain.ErrQuery},
		{name: "nil_result", conn: &fakeConn{}, wantErr: domain.ErrQuery},
		{name: "connection_lost_during_query", conn: &fakeConn{err: fmt.Errorf("%w: dial", domain.ErrConnectivity)}, wantErr: domain.ErrQuery},
		{name: "nil_connection", nilConn: true, wantErr: domain.ErrConnectivity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, logs := newObserved(scenarioTable)
			sink := &recordingSink{}
			var rep domain.PassReport
			if tc.nilConn {
				rep = c.Collect(context.Background(), nil, sink, "web01", nil)
			} else {
				rep = c.Collect(context.Background(), tc.conn, sink, "web01", nil)
			}

			if !errors.Is(rep.Err, tc.wantErr) {
				t.Fatalf("err=%v want %v", rep.Err, tc.wantErr)
			}
			if len(sink.got) != 0 {
				t.Fatalf("submissions=%d want 0", len(sink.got))
			}
			entries := errorLogs(logs)
			if len(entries) != 1 {
				t.Fatalf("error logs=%d want 1", len(entries))
			}
			if entries[0].ContextMap()["class"] != WebServiceClass {
				t.Fatalf("pass error must name the class: %v", entries[0].ContextMap())
			}
		})
	}
}

func TestCollect_ConversionFailure(t *testing.T) {
	t.Parallel()

	c, logs := newObserved(scenarioTable)
	conn := &fakeConn{records: []domain.EntityRecord{
		{Name: "a", Counters: map[string]any{"ServiceUptime": "n/a", "TotalBytesSent": 10}},
		{Name: "b", Counters: map[string]any{"ServiceUptime": 5, "TotalBytesSent": 20}},
	}}
	sink := &recordingSink{}

	rep := c.Collect(context.Background(), conn, sink, "", []string{"env:qa"})

	if len(sink.got) != 3 {
		t.Fatalf("submissions=%d want 3", len(sink.got))
	}
	if sink.got[0].name != "iis.net.bytes_sent" || sink.got[0].tags[1] != "site:a" {
		t.Fatalf("first submission=%+v", sink.got[0])
	}
	entries := errorLogs(logs)
	if len(entries) != 1 {
		t.Fatalf("error logs=%d want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["metric"] != "iis.uptime" || fields["site"] != "a" {
		t.Fatalf("conversion log fields=%v", fields)
	}
	if rep.Conversions != 1 {
		t.Fatalf("Conversions=%d want 1", rep.Conversions)
	}
}

func TestCollect_FullCatalogCountsAndTags(t *testing.T) {
	t.Parallel()

	full := make(map[string]any, len(IISMetrics))
	for i, name := range Counters(IISMetrics) {
		full[name] = i
	}
	sites := []string{"_Total", "alpha", "beta", "gamma"}
	var records []domain.EntityRecord
	for _, s := range sites {
		records = append(records, domain.EntityRecord{Name: s, Counters: full})
	}

	c, _ := newObserved(IISMetrics)
	sink := &recordingSink{}
	base := []string{"env:prod", "role:web"}
	c.Collect(context.Background(), &fakeConn{records: records}, sink, "", base)

	if want := len(IISMetrics) * (len(sites) - 1); len(sink.got) != want {
		t.Fatalf("submissions=%d want %d", len(sink.got), want)
	}
	for _, s := range sink.got {
		if len(s.tags) != len(base)+1 {
			t.Fatalf("tags=%v", s.tags)
		}
		if !reflect.DeepEqual(s.tags[:len(base)], base) {
			t.Fatalf("base tags changed: %v", s.tags)
		}
		if s.tags[len(base)] == "site:_Total" {
			t.Fatal("aggregate entity emitted")
		}
	}
	if base[len(base)-1] != "role:web" || len(base) != 2 {
		t.Fatalf("base tags mutated: %v", base)
	}
}

func TestCollect_Idempotent(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{records: []domain.EntityRecord{
		{Name: "x", Counters: map[string]any{"ServiceUptime": 1, "TotalBytesSent": 2}},
		{Name: "y", Counters: map[string]any{"ServiceUptime": 3}},
	}}
	c, _ := newObserved(scenarioTable)

	first, second := &recordingSink{}, &recordingSink{}
	c.Collect(context.Background(), conn, first, "", []string{"a:b"})
	c.Collect(context.Background(), conn, second, "", []string{"a:b"})

	if !reflect.DeepEqual(first.got, second.got) {
		t.Fatalf("passes differ:\n%+v\n%+v", first.got, second.got)
	}
}

func TestValidateTable(t *testing.T) {
	if err := ValidateTable(IISMetrics); err != nil {
		t.Fatalf("catalog invalid: %v", err)
	}
	bad := [][]domain.Mapping{
		{{Name: "", Kind: domain.Gauge, Counter: "c"}},
		{{Name: "m", Kind: domain.Gauge, Counter: ""}},
		{{Name: "m", Kind: "histogram", Counter: "c"}},
		{{Name: "m", Kind: domain.Gauge, Counter: "c"}, {Name: "m", Kind: domain.Rate, Counter: "d"}},
	}
	for i, table := range bad {
		if err := ValidateTable(table); err == nil {
			t.Errorf("table %d: expected error", i)
		}
	}
}

func TestIISMetrics_Catalog(t *testing.T) {
	gauges := 0
	for _, m := range IISMetrics {
		if m.Kind == domain.Gauge {
			gauges++
		}
	}
	if len(IISMetrics) != 21 || gauges != 2 {
		t.Fatalf("catalog size=%d gauges=%d", len(IISMetrics), gauges)
	}
	if IISMetrics[0].Name != "iis.uptime" {
		t.Fatalf("first entry=%q", IISMetrics[0].Name)
	}
}

func TestCollect_UnknownKindSkipsMetric(t *testing.T) {
	t.Parallel()

	c, logs := newObserved([]domain.Mapping{
		{Name: "iis.uptime", Kind: domain.Gauge, Counter: "ServiceUptime"},
		{Name: "iis.net.bytes_sent", Kind: "histogram", Counter: "TotalBytesSent"},
	})
	conn := &fakeConn{records: []domain.EntityRecord{
		{Name: "a", Counters: map[string]any{"ServiceUptime": 5, "TotalBytesSent": 20}},
	}}
	sink := &recordingSink{}

	rep := c.Collect(context.Background(), conn, sink, "web01", nil)
	if rep.Err != nil {
		t.Fatalf("unexpected pass error: %v", rep.Err)
	}
	if len(sink.got) != 1 || sink.got[0].name != "iis.uptime" || rep.Submitted != 1 {
		t.Fatalf("submissions=%+v submitted=%d", sink.got, rep.Submitted)
	}
	entries := errorLogs(logs)
	if len(entries) != 1 || entries[0].Message != "unable to submit metric" {
		t.Fatalf("error logs=%+v", entries)
	}
	fields := entries[0].ContextMap()
	if fields["metric"] != "iis.net.bytes_sent" || fields["site"] != "a" {
		t.Fatalf("log fields=%v", fields)
	}
	if !strings.Contains(fmt.Sprint(fields["error"]), domain.ErrInvalidKind.Error()) {
		t.Fatalf("error field=%v", fields["error"])
	}
}
