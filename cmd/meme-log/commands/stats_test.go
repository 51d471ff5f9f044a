package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/meme-go/meme/pkg/log"
)

func TestRunStats(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := append(requestResponse(ts),
		log.Event{
			Timestamp: ts.Add(2 * time.Second),
			Layer:     log.LayerService,
			Category:  log.CategoryState,
			Model:     "CU_HXR",
			Path:      testPath,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityTable,
				NewState: "00000000deadbeef",
				Reason:   "fetched",
			},
		},
		log.Event{
			Timestamp: ts.Add(3 * time.Second),
			Layer:     log.LayerService,
			Category:  log.CategoryState,
			Model:     "CU_HXR",
			Path:      testPath,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityTable,
				OldState: "00000000deadbeef",
				NewState: "00000000cafebabe",
				Reason:   "fetched",
			},
		},
		log.Event{
			Timestamp: ts.Add(4 * time.Second),
			Layer:     log.LayerService,
			Category:  log.CategoryError,
			Model:     "CU_HXR",
			Path:      testPath,
			Error:     &log.ErrorEventData{Layer: log.LayerService, Message: "timeout"},
		},
	)
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Model Service Log Statistics",
		"Total Events: 5",
		"Duration:   4s",
		"WIRE:",
		"SERVICE:",
		"Connections: 1",
		"[abc12345] CLIENT, 2 events",
		"Tables: 1",
		testPath,
		"Requests: 1, failures: 0, replacements: 1",
		"Rows: 1480",
		"Mean time: 1.500ms",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestStatsCountsFailures(t *testing.T) {
	events := requestResponse(time.Now())
	failed := *events[1].Message
	status := failed.Status
	*status = 1
	failed.Rows = nil
	events[1].Message = &failed

	stats := newStats()
	for _, e := range events {
		stats.add(e)
	}

	tbl := stats.Tables[testPath]
	if tbl == nil {
		t.Fatalf("expected stats for %s", testPath)
	}
	if tbl.Requests != 1 || tbl.Failures != 1 {
		t.Errorf("expected 1 request and 1 failure, got %+v", tbl)
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("expected zero events, got: %s", buf.String())
	}
}
