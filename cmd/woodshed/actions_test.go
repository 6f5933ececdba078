package main

import (
	"testing"
	"time"
)

func TestUnmarshalAction_UserActions(t *testing.T) {
	a, err := UnmarshalAction([]byte(`{"type":"scrub_ended","data":{"at_sec":45.5}}`))
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	scrub, ok := a.(ScrubEnded)
	if !ok {
		t.Fatalf("expected ScrubEnded, got %T", a)
	}
	if scrub.AtSec != 45.5 {
		t.Errorf("expected at_sec 45.5, got %f", scrub.AtSec)
	}

	// Payload-free actions need no data field.
	a, err = UnmarshalAction([]byte(`{"type":"toggle_play"}`))
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := a.(TogglePlay); !ok {
		t.Fatalf("expected TogglePlay, got %T", a)
	}
}

func TestUnmarshalAction_RejectsUnknownType(t *testing.T) {
	if _, err := UnmarshalAction([]byte(`{"type":"reboot"}`)); err == nil {
		t.Error("expected error for unknown action type")
	}
	// Internal actions are not part of the external envelope vocabulary.
	if _, err := UnmarshalAction([]byte(`{"type":"position_ticked","data":{"sec":1}}`)); err == nil {
		t.Error("expected error for internal action type")
	}
	if _, err := UnmarshalAction([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestMarshalAction_RoundTrip(t *testing.T) {
	data, err := MarshalAction(SetLoopStart{AtSec: 62.5})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	back, err := UnmarshalAction(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	ls, ok := back.(SetLoopStart)
	if !ok {
		t.Fatalf("expected SetLoopStart, got %T", back)
	}
	if ls.AtSec != 62.5 {
		t.Errorf("expected at_sec 62.5, got %f", ls.AtSec)
	}
}

func TestMarshalAction_RejectsInternal(t *testing.T) {
	if _, err := MarshalAction(PositionTicked{Sec: 1, At: time.Now()}); err == nil {
		t.Error("expected error marshaling internal action")
	}
}
