package log

import (
	"sync"
	"testing"
)

func TestTee(t *testing.T) {
	t.Run("NoLoggers", func(t *testing.T) {
		if l := Tee(nil, NoopLogger{}); l != nil {
			t.Errorf("Tee() = %T, want nil", l)
		}
	})

	t.Run("SingleLoggerReturnedAsIs", func(t *testing.T) {
		rec := &Recorder{}
		if l := Tee(nil, rec); l != Logger(rec) {
			t.Errorf("Tee() = %T, want the recorder itself", l)
		}
	})

	t.Run("FansOutInOrder", func(t *testing.T) {
		var order []string
		first := LoggerFunc(func(Event) { order = append(order, "first") })
		second := LoggerFunc(func(Event) { order = append(order, "second") })
		rec := &Recorder{}

		l := Tee(first, nil, Tee(second, rec))
		for _, e := range fetchTrace("c1", traceStart) {
			l.Log(e)
		}

		if rec.Len() != 4 {
			t.Errorf("recorder saw %d events, want 4", rec.Len())
		}
		if len(order) != 8 || order[0] != "first" || order[1] != "second" {
			t.Errorf("call order = %v", order)
		}
	})
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	var wg sync.WaitGroup
	for _, conn := range []string{"c1", "c2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, e := range fetchTrace(conn, traceStart) {
				rec.Log(e)
			}
		}()
	}
	wg.Wait()

	if rec.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", rec.Len())
	}
	state := CategoryState
	if got := rec.Matching(Filter{ConnectionID: "c2", Category: &state}); len(got) != 1 {
		t.Errorf("Matching returned %d events, want 1", len(got))
	}

	snapshot := rec.Events()
	snapshot[0].ConnectionID = "mutated"
	if rec.Events()[0].ConnectionID == "mutated" {
		t.Error("Events() exposes the internal slice")
	}

	rec.Reset()
	if rec.Len() != 0 {
		t.Errorf("Len() after Reset = %d", rec.Len())
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	for _, e := range fetchTrace("c1", traceStart) {
		l.Log(e)
	}
}
