package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/meme-go/meme/pkg/wire"
)

const (
	rmatPath  = "BMAD:SYS0:1:CU_HXR:LIVE:RMAT"
	twissPath = "BMAD:SYS0:1:CU_HXR:LIVE:TWISS"
)

var traceStart = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

// fetchTrace is what a client captures for one RMAT fetch on connection
// conn: request, response, the cache replacing its table, then a ping.
func fetchTrace(conn string, at time.Time) []Event {
	status := wire.StatusSuccess
	rows := 1480
	took := 2 * time.Millisecond
	return []Event{
		{
			Timestamp: at, ConnectionID: conn, Direction: DirectionOut,
			Layer: LayerWire, Category: CategoryMessage, Model: "CU_HXR", Path: rmatPath,
			Message: &MessageEvent{Type: MessageTypeRequest, MessageID: 7, Scheme: "pva", Path: rmatPath},
		},
		{
			Timestamp: at.Add(took), ConnectionID: conn, Direction: DirectionIn,
			Layer: LayerWire, Category: CategoryMessage, Model: "CU_HXR", Path: rmatPath,
			Message: &MessageEvent{
				Type: MessageTypeResponse, MessageID: 7, Status: &status,
				Rows: &rows, Fingerprint: 0x0badcafe, ProcessingTime: &took,
			},
		},
		{
			Timestamp: at.Add(took + time.Microsecond), ConnectionID: conn,
			Layer: LayerService, Category: CategoryState, Model: "CU_HXR", Path: rmatPath,
			StateChange: &StateChangeEvent{
				Entity: StateEntityTable, NewState: "000000000badcafe", Reason: "fetched",
			},
		},
		{
			Timestamp: at.Add(time.Second), ConnectionID: conn, Direction: DirectionOut,
			Layer: LayerTransport, Category: CategoryControl,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgPing},
		},
	}
}

func writeCapture(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.mlog")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}
