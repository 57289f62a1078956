package observer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vshulcz/iischeck/pkg/observer"
)

type passEvent struct {
	Host string
}

func TestSubject_PublishInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	rec := func(tag string) observer.Observer[passEvent] {
		return observer.ObserverFunc[passEvent](func(_ context.Context, e passEvent) error {
			order = append(order, tag+":"+e.Host)
			return nil
		})
	}
	subj := observer.NewSubject(rec("a"), nil, rec("b"))
	if subj.Len() != 2 {
		t.Fatalf("Len=%d want 2 (nil skipped)", subj.Len())
	}
	subj.Publish(context.Background(), passEvent{Host: "web01"})

	if len(order) != 2 || order[0] != "a:web01" || order[1] != "b:web01" {
		t.Fatalf("order=%v", order)
	}
}

func TestSubject_ErrorHandler(t *testing.T) {
	t.Parallel()

	subj := observer.NewSubject[passEvent]()
	subj.Attach(observer.ObserverFunc[passEvent](func(context.Context, passEvent) error {
		return errors.New("boom")
	}))

	subj.Publish(context.Background(), passEvent{}) // no handler yet

	var errs []error
	subj.SetErrorHandler(func(err error) { errs = append(errs, err) })
	subj.Publish(context.Background(), passEvent{})
	if len(errs) != 1 || errs[0].Error() != "boom" {
		t.Fatalf("expected boom, got %+v", errs)
	}

	subj.SetErrorHandler(nil)
	subj.Publish(context.Background(), passEvent{})
	if len(errs) != 1 {
		t.Fatalf("handler still called after reset: %d", len(errs))
	}
}

func TestSubject_ConcurrentPublishAndAttach(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	count := observer.ObserverFunc[passEvent](func(context.Context, passEvent) error {
		calls.Add(1)
		return nil
	})
	subj := observer.NewSubject[passEvent](count)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			subj.Publish(context.Background(), passEvent{Host: "h"})
		}()
		go func() {
			defer wg.Done()
			subj.Attach(count)
		}()
	}
	wg.Wait()

	if subj.Len() != 9 {
		t.Fatalf("Len=%d want 9", subj.Len())
	}
	if calls.Load() < 8 {
		t.Fatalf("calls=%d want >= 8", calls.Load())
	}
}

func TestSubject_NilSafe(t *testing.T) {
	t.Parallel()

	var subj *observer.Subject[passEvent]
	subj.Publish(context.Background(), passEvent{})
	subj.Attach(nil)
	subj.SetErrorHandler(nil)
	if subj.Len() != 0 {
		t.Fatal("nil subject must be empty")
	}
	var f observer.ObserverFunc[passEvent]
	if err := f.Notify(context.Background(), passEvent{}); err != nil {
		t.Fatal(err)
	}
}
