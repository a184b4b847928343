package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mueck/internal/adapter/memstore"
	"mueck/internal/domain"
	"mueck/internal/slack"
	"mueck/internal/storage"
)

func mentionPayload(t *testing.T, text string) json.RawMessage {
	t.Helper()
	env := slack.Envelope{
		Type:     slack.TypeEventCallback,
		APIAppID: "A1",
		Event: &slack.MessageEvent{
			Type:    "app_mention",
			Channel: "C1",
			TS:      "1700000000.000100",
			Blocks: []slack.Block{{
				Type: "rich_text",
				Elements: []slack.RichElement{{
					Type:     "rich_text_section",
					Elements: []slack.Leaf{{Type: "user", UserID: "BOT"}, {Type: "text", Text: text}},
				}},
			}},
		},
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

type fixture struct {
	store *memstore.Store
	files *storage.FileStore
	event *domain.InboundEvent
}

func newFixture(t *testing.T, prompt string) *fixture {
	t.Helper()
	store := memstore.New()
	in := store.AddIntegration(domain.Integration{AppID: "A1", BotUserID: "BOT", AccessToken: "xoxb"})
	event := &domain.InboundEvent{
		IntegrationID: in.ID,
		Payload:       mentionPayload(t, prompt),
		Channel:       "C1",
		RequestTS:     "1700000000.000100",
	}
	if err := store.Insert(context.Background(), event); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return &fixture{store: store, files: files, event: event}
}

func (f *fixture) reload(t *testing.T) *domain.InboundEvent {
	t.Helper()
	ev, err := f.store.Get(context.Background(), f.event.ID)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	return ev
}

// pngWithSeed builds a minimal PNG carrying a node graph with the given seed.
func pngWithSeed(seed int) []byte {
	graph, _ := json.Marshal(map[string]any{"3": map[string]any{"inputs": map[string]any{"seed": seed}}})
	return pngWithGraph(string(graph))
}

// pngWithGraph embeds graph verbatim as the prompt text chunk.
func pngWithGraph(graph string) []byte {
	chunk := func(kind string, data []byte) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		buf.WriteString(kind)
		buf.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(kind))
		crc.Write(data)
		_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
		return buf.Bytes()
	}
	out := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	out = append(out, chunk("IHDR", make([]byte, 13))...)
	out = append(out, chunk("tEXt", append([]byte("prompt\x00"), graph...))...)
	return append(out, chunk("IEND", nil)...)
}

// imageServer serves fixed bodies by path and counts requests.
type imageServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	fail  bool
	bodys map[string][]byte
}

func newImageServer(t *testing.T, bodies map[string][]byte) *imageServer {
	t.Helper()
	s := &imageServer{hits: make(map[string]int), bodys: bodies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		fail := s.fail
		s.mu.Unlock()
		body, ok := bodies[r.URL.Path]
		if fail || !ok {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func fastPoller(store *memstore.Store, notifier Notifier) *Poller {
	return NewPoller(store.Jobs(), PollerOptions{Interval: time.Millisecond, Notifier: notifier})
}
