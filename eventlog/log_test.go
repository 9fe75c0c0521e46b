package eventlog

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsCallOrder(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l := New(clock)

	types := []Type{TypeImageUploaded, TypeCropCommitted, TypePreviewRendered, TypeImageExported, TypeTabChanged}
	for _, ty := range types {
		clock.Advance(1250 * time.Millisecond)
		l.Append(ty, nil)
	}

	events := l.Events()
	require.Len(t, events, len(types))
	rel := regexp.MustCompile(`^\d+\.\d+s$`)
	for i, e := range events {
		assert.Equal(t, types[i], e.Type)
		assert.Regexp(t, rel, e.Relative())
	}
	assert.Equal(t, "1.25s", events[0].Relative())
	assert.Equal(t, "6.25s", events[4].Relative())
}

func TestAppendCopiesMeta(t *testing.T) {
	l := New(nil)
	meta := Meta{"filter": "sepia"}
	l.Append(TypeAdjusted, meta)
	meta["filter"] = "none"

	got := l.Events()[0]
	assert.Equal(t, "sepia", got.Meta["filter"])
}

func TestSubscribersSeeEventsInOrder(t *testing.T) {
	l := New(nil)
	var seen []Type
	unsubscribe := l.Subscribe(func(e Event) { seen = append(seen, e.Type) })

	l.Append(TypeSoundPlayed, nil)
	l.Append(TypeCubeReady, nil)
	unsubscribe()
	unsubscribe()
	l.Append(TypeTabChanged, nil)

	assert.Equal(t, []Type{TypeSoundPlayed, TypeCubeReady}, seen)
	assert.Equal(t, 0, l.Subscribers())
}

func TestExportShape(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	l := New(clock)
	clock.Advance(1500 * time.Millisecond)
	l.Append(TypeVoiceCommand, Meta{"text": "hola"})
	l.Append(TypeTabChanged, nil)

	var buf bytes.Buffer
	require.NoError(t, l.Export(&buf))

	var doc struct {
		T0     int64 `json:"t0"`
		Events []map[string]any
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, start.UnixMilli(), doc.T0)
	require.Len(t, doc.Events, 2)
	assert.Equal(t, "voice_command", doc.Events[0]["type"])
	assert.InDelta(t, 1500.0, doc.Events[0]["t"], 0.001)
	assert.Contains(t, doc.Events[0], "meta")
	assert.NotContains(t, doc.Events[1], "meta")
}

func TestExportName(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 5, 9, 0, time.UTC)
	assert.Equal(t, "promostudio_log_20261019T080509Z.json", ExportName(now))
}
