package models

import (
	"fmt"
	"testing"
)

func history(pairs int) []Message {
	out := make([]Message, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		out = append(out,
			NewTextMessage(RoleUser, fmt.Sprintf("q%d", i)),
			NewTextMessage(RoleModel, fmt.Sprintf("a%d", i)),
		)
	}
	return out
}

func TestTrimHistoryKeepsNewestPairs(t *testing.T) {
	got := TrimHistory(history(12), 20)
	if len(got) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(got))
	}
	if got[0].Text() != "q2" || got[19].Text() != "a11" {
		t.Fatalf("unexpected window: first=%q last=%q", got[0].Text(), got[19].Text())
	}
}

func TestTrimHistoryOddCapDropsLeadingModelTurn(t *testing.T) {
	got := TrimHistory(history(3), 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != RoleUser || got[0].Text() != "q2" {
		t.Fatalf("expected window to start at newest user turn, got %+v", got[0])
	}
}

func TestTrimHistoryDisabled(t *testing.T) {
	h := history(30)
	if got := TrimHistory(h, 0); len(got) != len(h) {
		t.Fatalf("expected untouched history, got %d", len(got))
	}
}

func TestMessageTextJoinsParts(t *testing.T) {
	m := Message{Role: RoleModel, Parts: []Part{{Text: "Hello, "}, {Text: "world"}}}
	if m.Text() != "Hello, world" {
		t.Fatalf("unexpected text %q", m.Text())
	}
}
