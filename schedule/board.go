package schedule

import "time"

// Board is one studio's view of the post list.
type Board struct {
	store    *Store
	studioID string
	now      func() time.Time
}

// NewBoard binds store to studioID. now defaults to time.Now.
func NewBoard(store *Store, studioID string, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{store: store, studioID: studioID, now: now}
}

// Save creates a post at the front of the list. A blank title becomes
// PlaceholderTitle; scheduledAt is kept as given, even when in the past.
func (b *Board) Save(title, description string, scheduledAt time.Time) (Post, error) {
	p := Post{
		ID:          newPostID(),
		CreatedAt:   b.now(),
		Title:       NormalizeTitle(title),
		Description: description,
		ScheduledAt: scheduledAt,
	}
	if err := b.store.InsertPost(b.studioID, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// SaveNow creates a post scheduled at its own creation time.
func (b *Board) SaveNow(title string) (Post, error) {
	now := b.now()
	p := Post{
		ID:          newPostID(),
		CreatedAt:   now,
		Title:       NormalizeTitle(title),
		ScheduledAt: now,
	}
	if err := b.store.InsertPost(b.studioID, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// List returns the posts, most recent first.
func (b *Board) List() ([]Post, error) {
	return b.store.ListPosts(b.studioID)
}

// Purge removes the studio's posts.
func (b *Board) Purge() error {
	return b.store.PurgeStudio(b.studioID)
}
