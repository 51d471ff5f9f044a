package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/wire"
)

const testPath = "BMAD:SYS0:1:CU_HXR:LIVE:RMAT"

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// requestResponse returns a request and its response for testPath.
func requestResponse(ts time.Time) []log.Event {
	status := wire.StatusSuccess
	rows := 1480
	elapsed := 1500 * time.Microsecond
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "abc12345-6789",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Path:         testPath,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeRequest,
				MessageID: 42,
				Scheme:    wire.DefaultScheme,
				Path:      testPath,
			},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "abc12345-6789",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Path:         testPath,
			Message: &log.MessageEvent{
				Type:           log.MessageTypeResponse,
				MessageID:      42,
				Path:           testPath,
				Status:         &status,
				Rows:           &rows,
				Fingerprint:    0xdeadbeef,
				ProcessingTime: &elapsed,
			},
		},
	}
}
