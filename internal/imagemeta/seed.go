package imagemeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// PromptKeyword is the text chunk holding the node graph the image was rendered from.
const PromptKeyword = "prompt"

var (
	// ErrSeedNotFound indicates the metadata carried no usable seed.
	ErrSeedNotFound = errors.New("imagemeta: seed not found")
	// ErrSeedOutOfRange indicates an integral seed that does not fit in int64.
	ErrSeedOutOfRange = errors.New("imagemeta: seed out of int64 range")
)

// RecoverSeed reads the node graph embedded under PromptKeyword and returns the first
// inputs.seed value, visiting nodes in id order.
func RecoverSeed(data []byte) (int64, error) {
	chunks, err := TextChunks(data)
	if err != nil {
		return 0, err
	}
	graph, ok := chunks[PromptKeyword]
	if !ok {
		return 0, ErrSeedNotFound
	}
	return SeedFromGraph([]byte(graph))
}

// SeedFromGraph applies the lookup to a JSON object keyed by node id. Numbers are kept
// as their literal text so seeds above 2^53 survive exactly.
func SeedFromGraph(graph []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(graph))
	dec.UseNumber()
	var nodes map[string]any
	if err := dec.Decode(&nodes); err != nil {
		return 0, fmt.Errorf("imagemeta: decode node graph: %w", err)
	}
	for _, id := range sortedNodeIDs(nodes) {
		value, err := jmespath.Search("inputs.seed", nodes[id])
		if err != nil || value == nil {
			continue
		}
		seed, ok, err := toSeed(value)
		if err != nil {
			return 0, fmt.Errorf("node %s: %w", id, err)
		}
		if ok {
			return seed, nil
		}
	}
	return 0, ErrSeedNotFound
}

// sortedNodeIDs orders numeric ids numerically and places them before other ids.
func sortedNodeIDs(nodes map[string]any) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := strconv.ParseInt(ids[i], 10, 64)
		b, bErr := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}

// toSeed accepts integer literals, optionally written with a zero fraction ("42.0"),
// as JSON numbers or strings.
func toSeed(value any) (int64, bool, error) {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return 0, false, nil
	}
	if whole, frac, found := strings.Cut(text, "."); found && frac != "" && strings.Trim(frac, "0") == "" {
		text = whole
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, false, fmt.Errorf("%w: %s", ErrSeedOutOfRange, text)
		}
		return 0, false, nil
	}
	return n, true, nil
}
