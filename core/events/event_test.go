package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

type namedEvent string

func (n namedEvent) EventType() string { return string(n) }

type sliceEmitter struct{ got []Event }

func (s *sliceEmitter) Emit(evt Event) { s.got = append(s.got, evt) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(namedEvent("a"))
	buf.Emit(nil)
	buf.Emit(namedEvent("b"))

	if got := len(buf.Events()); got != 2 {
		t.Fatalf("expected 2 buffered events, got %d", got)
	}

	dst := &sliceEmitter{}
	buf.FlushTo(dst)
	if len(dst.got) != 2 || dst.got[0].EventType() != "a" || dst.got[1].EventType() != "b" {
		t.Fatalf("unexpected flushed events: %#v", dst.got)
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("expected buffer to be cleared after flush")
	}
}

type payloadEvent struct{ evt *types.Event }

func (p payloadEvent) EventType() string   { return p.evt.Type }
func (p payloadEvent) Event() *types.Event { return p.evt }

func TestLogEmitterWritesAttributes(t *testing.T) {
	var out bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&out, nil)))
	emitter.Emit(payloadEvent{evt: &types.Event{
		Type:       "crowdfund.opened",
		Attributes: map[string]string{"target": "500", "campaign": "ab"},
	}})
	emitter.Emit(nil)

	var record map[string]any
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, out.String())
	}
	if record["type"] != "crowdfund.opened" || record["component"] != "events" {
		t.Fatalf("unexpected record: %v", record)
	}
	attrs, ok := record["attributes"].(map[string]any)
	if !ok || attrs["target"] != "500" || attrs["campaign"] != "ab" {
		t.Fatalf("unexpected attributes: %v", record["attributes"])
	}
}
