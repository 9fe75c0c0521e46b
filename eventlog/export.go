package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type exportEvent struct {
	Type Type    `json:"type"`
	T    float64 `json:"t"`
	Meta Meta    `json:"meta,omitempty"`
}

type exportDoc struct {
	T0     int64         `json:"t0"`
	Events []exportEvent `json:"events"`
}

// Export writes the log as {"t0": <epoch ms>, "events": [{type, t, meta?}]}.
func (l *Log) Export(w io.Writer) error {
	events := l.Events()
	doc := exportDoc{
		T0:     l.start.UnixMilli(),
		Events: make([]exportEvent, len(events)),
	}
	for i, e := range events {
		doc.Events[i] = exportEvent{Type: e.Type, T: e.Millis(), Meta: e.Meta}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	return nil
}

// ExportName returns the download file name for a log exported at now.
func ExportName(now time.Time) string {
	return "promostudio_log_" + now.UTC().Format("20060102T150405Z") + ".json"
}
