package agent

import (
	"github.com/vshulcz/iischeck/internal/domain"
	"github.com/vshulcz/iischeck/internal/ports"
)

type tee []ports.Sink

// Tee fans every submission out to sinks in order. Nil sinks are ignored.
func Tee(sinks ...ports.Sink) ports.Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ForHost scopes every member that keeps hosts apart.
func (t tee) ForHost(host string) ports.Sink {
	out := make(tee, len(t))
	for i, s := range t {
		out[i] = forHost(s, host)
	}
	return out
}

// forHost scopes sink to host when it supports it.
func forHost(sink ports.Sink, host string) ports.Sink {
	if hs, ok := sink.(ports.HostScoper); ok {
		return hs.ForHost(host)
	}
	return sink
}

func (t tee) Submit(name string, value float64, tags []string, kind domain.MetricKind) {
	for _, s := range t {
		s.Submit(name, value, tags, kind)
	}
}
