package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMessageIDStates(t *testing.T) {
	confirmed := ConfirmedID(42)
	if !confirmed.IsConfirmed() || confirmed.IsPending() {
		t.Fatalf("expected confirmed id, got %+v", confirmed)
	}
	if confirmed.String() != "42" {
		t.Fatalf("expected 42, got %q", confirmed.String())
	}

	pending := PendingID()
	if !pending.IsPending() || pending.IsConfirmed() {
		t.Fatalf("expected pending id, got %+v", pending)
	}
	if pending.Local == "" {
		t.Fatal("expected a generated local id")
	}

	other := PendingID()
	if other.Local == pending.Local {
		t.Fatal("expected unique local ids")
	}

	var zero MessageID
	if !zero.IsZero() || zero.IsPending() || zero.IsConfirmed() {
		t.Fatalf("expected zero id to be unset, got %+v", zero)
	}
}

func TestMessageIDJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		id   MessageID
		want string
	}{
		{"confirmed", ConfirmedID(7), "7"},
		{"pending", MessageID{Local: "abc"}, `"local:abc"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.id)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, data)
			}

			var back MessageID
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tc.id {
				t.Fatalf("round trip changed id: %+v -> %+v", tc.id, back)
			}
		})
	}
}

func TestMessageIDUnmarshalBareInt(t *testing.T) {
	var id MessageID
	if err := json.Unmarshal([]byte("123"), &id); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if id.Server != 123 {
		t.Fatalf("expected server id 123, got %+v", id)
	}
}

func TestSortMessagesStable(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: ConfirmedID(3), Role: RoleUser, Content: "third", Timestamp: base.Add(2 * time.Minute)},
		{ID: ConfirmedID(1), Role: RoleUser, Content: "first", Timestamp: base},
		{ID: ConfirmedID(2), Role: RoleAssistant, Content: "tie-a", Timestamp: base.Add(time.Minute)},
		{ID: PendingID(), Role: RoleUser, Content: "tie-b", Timestamp: base.Add(time.Minute)},
	}

	SortMessages(messages)

	got := []string{messages[0].Content, messages[1].Content, messages[2].Content, messages[3].Content}
	want := []string{"first", "tie-a", "tie-b", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	// Sorting again must not reorder the equal-timestamp pair.
	SortMessages(messages)
	if messages[1].Content != "tie-a" || messages[2].Content != "tie-b" {
		t.Fatalf("re-sort reordered equal timestamps: %v", []string{messages[1].Content, messages[2].Content})
	}
}

func TestMessageValidate(t *testing.T) {
	valid := NewLocalMessage(RoleUser, "hello")
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}

	invalid := Message{Role: Role("system"), Content: "x"}
	err := invalid.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInvalidMessageID) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}
