package game

import (
	"encoding/json"
	"testing"
)

func TestStateStringRoundTrip(t *testing.T) {
	states := []State{
		NotStarted(),
		Betting(0),
		Betting(3),
		InTrick(0),
		InTrick(2),
		Completed(),
		Aborted(),
	}
	for _, s := range states {
		parsed, err := ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%q) failed: %v", s.String(), err)
		}
		if parsed != s {
			t.Errorf("ParseState(%q) = %v, want %v", s.String(), parsed, s)
		}
	}
}

func TestParseStateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "Betting", "Betting(4)", "Betting(-1)", "Trick(x)", "Foo(1)", "completed"} {
		if _, err := ParseState(raw); err == nil {
			t.Errorf("ParseState(%q) succeeded, expected error", raw)
		}
	}
}

func TestStateJSONEncoding(t *testing.T) {
	data, err := json.Marshal(Betting(2))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"Betting(2)"` {
		t.Errorf("Marshal = %s, want %q", data, `"Betting(2)"`)
	}

	var s State
	if err := json.Unmarshal([]byte(`"Trick(1)"`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s != InTrick(1) {
		t.Errorf("Unmarshal = %v, want Trick(1)", s)
	}
}

func TestStatePredicates(t *testing.T) {
	if !Completed().Terminal() || !Aborted().Terminal() {
		t.Error("Completed and Aborted must be terminal")
	}
	if NotStarted().Terminal() || Betting(0).Terminal() {
		t.Error("NotStarted and Betting must not be terminal")
	}
	if !Betting(1).Active() || !InTrick(3).Active() {
		t.Error("Betting and Trick must be active")
	}
	if NotStarted().Active() || Completed().Active() {
		t.Error("NotStarted and Completed must not be active")
	}
}
