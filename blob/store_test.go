package blob

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateGetRevoke(t *testing.T) {
	s := New(4, 0)
	h := s.Create([]byte("png"), "image/png")

	if !strings.HasPrefix(h.URL, URLPrefix) || TokenOf(h.URL) != h.Token {
		t.Fatalf("handle = %+v", h)
	}
	data, mime, err := s.Get(h.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "png" || mime != "image/png" {
		t.Errorf("got %q %q", data, mime)
	}

	if err := s.Revoke(h.URL); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := s.Revoke(h.Token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("second revoke err = %v, want ErrRevoked", err)
	}
	if _, _, err := s.Get(h.Token); !errors.Is(err, ErrRevoked) {
		t.Fatalf("get after revoke err = %v, want ErrRevoked", err)
	}
	if st := s.Stats(); st.Live != 0 || st.Created != 1 || st.Revoked != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestUnknownToken(t *testing.T) {
	s := New(1, 0)
	if err := s.Revoke("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoke err = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get err = %v, want ErrNotFound", err)
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2, 0)
	a := s.Create([]byte("a"), "")
	b := s.Create([]byte("b"), "")
	if _, _, err := s.Get(a.Token); err != nil {
		t.Fatalf("get a: %v", err)
	}
	s.Create([]byte("c"), "")

	if _, _, err := s.Get(b.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("b should be evicted, err = %v", err)
	}
	if _, _, err := s.Get(a.Token); err != nil {
		t.Errorf("a should survive: %v", err)
	}
	if st := s.Stats(); st.Evictions != 1 || st.Live != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(8, time.Minute).WithClock(func() time.Time { return now })
	a := s.Create([]byte("a"), "")
	now = now.Add(30 * time.Second)
	b := s.Create([]byte("b"), "")

	now = now.Add(40 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, _, err := s.Get(a.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("a err = %v, want ErrRevoked", err)
	}
	if _, _, err := s.Get(b.Token); err != nil {
		t.Errorf("b: %v", err)
	}

	now = now.Add(time.Minute)
	if _, _, err := s.Get(b.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("b after ttl err = %v, want ErrRevoked", err)
	}
}

func TestClearReleasesAll(t *testing.T) {
	s := New(4, 0)
	h := s.Create([]byte("x"), "")
	s.Create([]byte("y"), "")
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
	if err := s.Revoke(h.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("revoke after clear err = %v, want ErrRevoked", err)
	}
}

func TestPinnedHandleOutlivesTTLAndCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(1, time.Minute).WithClock(func() time.Time { return now })

	p := s.Pin([]byte("preview"), "image/png")
	a := s.Create([]byte("a"), "")
	b := s.Create([]byte("b"), "")

	if _, _, err := s.Get(a.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("a should be evicted, err = %v", err)
	}
	now = now.Add(time.Hour)
	if n := s.Sweep(); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if _, _, err := s.Get(b.Token); !errors.Is(err, ErrRevoked) {
		t.Errorf("b should be expired, err = %v", err)
	}

	data, _, err := s.Get(p.Token)
	if err != nil || string(data) != "preview" {
		t.Fatalf("pinned get = %q, %v", data, err)
	}
	if st := s.Stats(); st.Pinned != 1 || st.Live != 1 {
		t.Errorf("stats = %+v", st)
	}

	if err := s.Revoke(p.URL); err != nil {
		t.Fatalf("revoke pinned: %v", err)
	}
	if st := s.Stats(); st.Pinned != 0 || st.Live != 0 {
		t.Errorf("stats after revoke = %+v", st)
	}
}
