package log

import "testing"

func TestEnumNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerService.String(), "SERVICE"},
		{Layer(3).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryControl.String(), "CONTROL"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(200).String(), "UNKNOWN"},
		{RoleClient.String(), "CLIENT"},
		{RoleServer.String(), "SERVER"},
		{MessageTypeRequest.String(), "REQUEST"},
		{MessageTypeResponse.String(), "RESPONSE"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntityTable.String(), "TABLE"},
		{ControlMsgPing.String(), "PING"},
		{ControlMsgPong.String(), "PONG"},
		{ControlMsgClose.String(), "CLOSE"},
		{ControlMsgType(3).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

// Captures written by older builds must keep their meaning.
func TestEnumWireValues(t *testing.T) {
	if DirectionOut != 1 || LayerService != 2 || CategoryError != 3 || RoleServer != 1 {
		t.Error("header enum values changed")
	}
	if MessageTypeResponse != 1 || StateEntityTable != 2 || ControlMsgClose != 2 {
		t.Error("payload enum values changed")
	}
}

func TestEventKind(t *testing.T) {
	trace := fetchTrace("c1", traceStart)
	want := []string{"REQUEST", "RESPONSE", "STATE", "PING"}
	for i, e := range trace {
		if got := e.Kind(); got != want[i] {
			t.Errorf("event %d: Kind() = %q, want %q", i, got, want[i])
		}
	}
	if got := (Event{Frame: &FrameEvent{Size: 4}}).Kind(); got != "FRAME" {
		t.Errorf("frame Kind() = %q", got)
	}
	if got := (Event{Error: &ErrorEventData{Message: "x"}}).Kind(); got != "ERROR" {
		t.Errorf("error Kind() = %q", got)
	}
	if got := (Event{}).Kind(); got != "UNKNOWN" {
		t.Errorf("empty Kind() = %q", got)
	}
}
