// Package schedule holds the posts a studio has queued for publication.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderTitle replaces a blank title on save.
const PlaceholderTitle = "Publicación sin título"

// localLayouts are the shapes a datetime-local input may submit.
var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

var ErrInvalidTime = errors.New("invalid scheduled time")

// Post is a scheduled publication. Posts are never changed after creation.
type Post struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NormalizeTitle trims s and falls back to PlaceholderTitle when empty.
func NormalizeTitle(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return PlaceholderTitle
}

// ParseLocal reads a datetime-local value as wall-clock time in loc.
// Past times are accepted.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
}

// newPostID returns a time-ordered identifier derived from the creation time.
func newPostID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
