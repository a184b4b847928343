package imagevendor

import (
	"regexp"
	"strings"
)

// Policy routes prompts between vendors based on content keywords.
type Policy struct {
	Keywords      []string
	PolicyVendor  Kind
	DefaultVendor Kind
}

// Select returns PolicyVendor when the prompt contains one of the keywords as a whole word
// (case-insensitive) and DefaultVendor otherwise.
func Select(prompt string, policy Policy) Kind {
	if matchesKeyword(prompt, policy.Keywords) {
		return policy.PolicyVendor
	}
	return policy.DefaultVendor
}

func matchesKeyword(prompt string, keywords []string) bool {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(kw))
	}
	if len(parts) == 0 {
		return false
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
	return re.MatchString(prompt)
}
