package imagevendor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// ParseSize reads a "WIDTHxHEIGHT" string. Anything else yields 0, 0.
func ParseSize(size string) (int, int) {
	m := sizePattern.FindStringSubmatch(size)
	if m == nil {
		return 0, 0
	}
	width, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0
	}
	return width, height
}

// flexInt accepts a JSON number or a numeric string.
type flexInt struct {
	Value int64
	Valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" || text == "" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return nil
		}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = n, true
	return nil
}
