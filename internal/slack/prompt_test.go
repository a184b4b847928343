package slack

import (
	"encoding/json"
	"errors"
	"testing"

	"mueck/internal/domain"
)

func envelopeWith(t *testing.T, leaves ...Leaf) json.RawMessage {
	t.Helper()
	env := Envelope{
		Type:     TypeEventCallback,
		APIAppID: "A1",
		Event: &MessageEvent{
			Type:    "app_mention",
			Channel: "C1",
			TS:      "1700000000.000100",
			Blocks: []Block{{
				Type:     "rich_text",
				Elements: []RichElement{{Type: "rich_text_section", Elements: leaves}},
			}},
		},
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestExtractPromptConcatenatesTextAndMentions(t *testing.T) {
	raw := envelopeWith(t, Leaf{Type: "text", Text: "a cat"}, Leaf{Type: "user", UserID: "U1"})
	got, err := ExtractPrompt(raw, "BOT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "a catU1" {
		t.Fatalf("expected %q, got %q", "a catU1", got.Text)
	}
	if got.Seed != domain.SeedVendorChooses {
		t.Fatalf("expected vendor-chosen seed, got %d", got.Seed)
	}
}

func TestExtractPromptSkipsBotMention(t *testing.T) {
	raw := envelopeWith(t, Leaf{Type: "user", UserID: "BOT"}, Leaf{Type: "text", Text: " a dog"})
	got, err := ExtractPrompt(raw, "BOT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "a dog" {
		t.Fatalf("expected %q, got %q", "a dog", got.Text)
	}
}

func TestExtractPromptSeedOverride(t *testing.T) {
	raw := envelopeWith(t,
		Leaf{Type: "text", Text: "a fox "},
		Leaf{Type: "text", Text: "seed:42", Style: &Style{Code: true}},
	)
	got, err := ExtractPrompt(raw, "BOT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Seed != 42 || got.Text != "a fox" {
		t.Fatalf("unexpected prompt %+v", got)
	}
}

func TestExtractPromptUnstyledSeedStaysInPrompt(t *testing.T) {
	raw := envelopeWith(t, Leaf{Type: "text", Text: "seed:42"})
	got, err := ExtractPrompt(raw, "BOT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "seed:42" || got.Seed != domain.SeedVendorChooses {
		t.Fatalf("unexpected prompt %+v", got)
	}
}

func TestExtractPromptTraversesQuotes(t *testing.T) {
	blocks := []Block{{
		Type: "rich_text",
		Elements: []RichElement{
			{Type: "rich_text_section", Elements: []Leaf{{Type: "text", Text: "a "}}},
			{Type: "rich_text_quote", Elements: []Leaf{{Type: "text", Text: "quoted"}}},
			{Type: "rich_text_list", Elements: []Leaf{{Type: "text", Text: " ignored"}}},
		},
	}}
	got := PromptFromBlocks(blocks, "")
	if got.Text != "a quoted" {
		t.Fatalf("expected %q, got %q", "a quoted", got.Text)
	}
}

func TestExtractPromptEmpty(t *testing.T) {
	raw := envelopeWith(t, Leaf{Type: "user", UserID: "BOT"}, Leaf{Type: "text", Text: "seed:7", Style: &Style{Code: true}})
	_, err := ExtractPrompt(raw, "BOT")
	if !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}
