package slack

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mueck/internal/domain"
)

var seedPattern = regexp.MustCompile(`^seed:(\d+)$`)

// Prompt is the generation request recovered from a message.
type Prompt struct {
	Text string
	// Seed is domain.SeedVendorChooses unless the message carried a seed:<digits> override.
	Seed int64
}

// ExtractPrompt walks the rich_text blocks of a stored envelope. Text leaves are concatenated,
// user mentions contribute the user id unless it is the bot's own, and a code-styled
// `seed:<digits>` leaf sets the seed instead of being appended.
func ExtractPrompt(payload json.RawMessage, botUserID string) (Prompt, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Prompt{}, fmt.Errorf("decode event payload: %w", err)
	}
	if env.Event == nil {
		return Prompt{}, fmt.Errorf("event payload has no message: %w", domain.ErrEmptyPrompt)
	}
	prompt := PromptFromBlocks(env.Event.Blocks, botUserID)
	if prompt.Text == "" {
		return prompt, domain.ErrEmptyPrompt
	}
	return prompt, nil
}

// PromptFromBlocks applies the extraction rules to already decoded blocks.
func PromptFromBlocks(blocks []Block, botUserID string) Prompt {
	prompt := Prompt{Seed: domain.SeedVendorChooses}
	var text strings.Builder
	for _, block := range blocks {
		if block.Type != "rich_text" {
			continue
		}
		for _, element := range block.Elements {
			if element.Type != "rich_text_section" && element.Type != "rich_text_quote" {
				continue
			}
			for _, leaf := range element.Elements {
				switch leaf.Type {
				case "user":
					if leaf.UserID != "" && leaf.UserID != botUserID {
						text.WriteString(leaf.UserID)
					}
				case "text":
					if seed, ok := seedOverride(leaf); ok {
						prompt.Seed = seed
						continue
					}
					text.WriteString(leaf.Text)
				}
			}
		}
	}
	prompt.Text = strings.TrimSpace(text.String())
	return prompt
}

func seedOverride(leaf Leaf) (int64, bool) {
	if leaf.Style == nil || !leaf.Style.Code {
		return 0, false
	}
	m := seedPattern.FindStringSubmatch(strings.TrimSpace(leaf.Text))
	if m == nil {
		return 0, false
	}
	seed, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return seed, true
}
