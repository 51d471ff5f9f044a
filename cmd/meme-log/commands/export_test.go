package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meme-go/meme/pkg/log"
)

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	path := createTestLogFile(t, requestResponse(ts))

	outPath := filepath.Join(t.TempDir(), "out.jsonl")
	if err := RunExport(path, "jsonl", outPath, log.Filter{}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}
		if obj["Path"] != testPath {
			t.Errorf("line %d: expected Path %s, got %v", i, testPath, obj["Path"])
		}
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	path := createTestLogFile(t, requestResponse(ts))

	outPath := filepath.Join(t.TempDir(), "out.csv")
	if err := RunExport(path, "csv", outPath, log.Filter{}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}

	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("unexpected header: %v", records[0])
	}

	col := func(name string) int {
		for i, h := range csvHeader {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}

	req, resp := records[1], records[2]
	if req[col("timestamp")] != "2026-01-28T10:15:32.123456Z" {
		t.Errorf("unexpected timestamp: %s", req[col("timestamp")])
	}
	if req[col("type")] != "REQUEST" || req[col("message_id")] != "42" {
		t.Errorf("unexpected request row: %v", req)
	}
	if req[col("path")] != testPath {
		t.Errorf("expected path %s, got %s", testPath, req[col("path")])
	}
	if resp[col("status")] != "SUCCESS" || resp[col("rows")] != "1480" {
		t.Errorf("unexpected response row: %v", resp)
	}
	if resp[col("fingerprint")] != "00000000deadbeef" {
		t.Errorf("unexpected fingerprint: %s", resp[col("fingerprint")])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, requestResponse(time.Now()))

	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"), log.Filter{})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExportFiltered(t *testing.T) {
	path := createTestLogFile(t, requestResponse(time.Now()))
	outPath := filepath.Join(t.TempDir(), "in.jsonl")

	in := log.DirectionIn
	if err := RunExport(path, "jsonl", outPath, log.Filter{Direction: &in}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
		t.Errorf("expected 1 exported event, got %d", len(lines))
	}
}
