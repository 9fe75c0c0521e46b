// Package eventlog keeps the append-only, per-studio record of user actions.
package eventlog

import (
	"fmt"
	"time"
)

// Type tags a log entry.
type Type string

const (
	TypeImageUploaded      Type = "image_uploaded"
	TypeViewChanged        Type = "view_changed"
	TypeCropCommitted      Type = "crop_committed"
	TypeAdjusted           Type = "adjusted"
	TypePreviewRendered    Type = "preview_rendered"
	TypeImageExported      Type = "image_exported"
	TypeEditorError        Type = "editor_error"
	TypeSoundPlayed        Type = "sound_played"
	TypeSoundError         Type = "sound_error"
	TypeVoiceCommand       Type = "voice_command"
	TypeVoicePostCreated   Type = "voice_post_created"
	TypeVoiceNotRecognized Type = "voice_not_recognized"
	TypePostSaved          Type = "post_saved"
	TypeCubeMounted        Type = "cube_mounted"
	TypeCubeReady          Type = "cube_ready"
	TypeCubeUnmounted      Type = "cube_unmounted"
	TypeTabChanged         Type = "tab_changed"
	TypeLogExported        Type = "log_exported"
	TypeTaskStarted        Type = "task_started"
	TypeTaskReset          Type = "task_reset"
)

// Meta is an open-ended attachment carried by an event.
type Meta map[string]any

// Event is a single immutable log record. At is measured from the start of
// the log's session.
type Event struct {
	Type Type
	At   time.Duration
	Meta Meta
}

// Relative renders the event offset the way the log panel shows it, e.g. "3.27s".
func (e Event) Relative() string {
	return fmt.Sprintf("%.2fs", e.At.Seconds())
}

// Millis returns the offset in fractional milliseconds.
func (e Event) Millis() float64 {
	return float64(e.At) / float64(time.Millisecond)
}
