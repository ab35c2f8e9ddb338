package models

import (
	"testing"
)

func TestDeckID(t *testing.T) {
	tests := []struct {
		material string
		count    int
	}{
		{"photosynthesis notes", 10},
		{"cell biology", 5},
		{"x", 1},
	}

	for _, tt := range tests {
		t.Run(tt.material, func(t *testing.T) {
			// DeckID should be deterministic
			id1 := DeckID(tt.material, tt.count)
			id2 := DeckID("  "+tt.material+"\n", tt.count)

			if id1 != id2 {
				t.Errorf("DeckID not deterministic: %v != %v", id1, id2)
			}

			// DeckID should be valid format
			if len(id1) != 36 {
				t.Errorf("DeckID invalid length: %d", len(id1))
			}

			if id1 == DeckID(tt.material, tt.count+1) {
				t.Errorf("DeckID ignores count")
			}
		})
	}
}

func TestMaterialHash(t *testing.T) {
	hash1 := MaterialHash("test body content")
	hash2 := MaterialHash("test body content")

	// Hash should be deterministic
	if hash1 != hash2 {
		t.Errorf("MaterialHash not deterministic")
	}

	// Hash should be 64 chars (SHA256 hex)
	if len(hash1) != 64 {
		t.Errorf("MaterialHash invalid length: %d", len(hash1))
	}

	// Different material should produce different hash
	if hash1 == MaterialHash("different body") {
		t.Errorf("Different material produced same hash")
	}
}

func TestCompletionRequest_Conversation(t *testing.T) {
	req := CompletionRequest{
		System:   "You are a tutor",
		Messages: []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Prompt:   "explain osmosis",
	}

	got := req.Conversation()
	want := []Message{
		{Role: "system", Content: "You are a tutor"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "explain osmosis"},
	}
	if len(got) != len(want) {
		t.Fatalf("Conversation() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Conversation()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCompletionRequest_Validate(t *testing.T) {
	temp := 3.0
	tests := []struct {
		name    string
		req     CompletionRequest
		wantErr bool
	}{
		{"prompt only", CompletionRequest{Prompt: "hi"}, false},
		{"messages only", CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}}, false},
		{"empty", CompletionRequest{System: "sys"}, true},
		{"bad role", CompletionRequest{Messages: []Message{{Role: "tool", Content: "x"}}}, true},
		{"bad temperature", CompletionRequest{Prompt: "hi", Temperature: &temp}, true},
		{"negative max tokens", CompletionRequest{Prompt: "hi", MaxTokens: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
