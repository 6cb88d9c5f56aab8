package restapi

import (
	"sync"

	"github.com/google/uuid"

	"github.com/searchktools/iris-restful/core/slide"
	"github.com/searchktools/iris-restful/core/slidecache"
)

// Session holds the one piece of state a connection carries across
// requests: the slide it last touched. It mirrors the reference
// implementation's Session::slide field and the sticky-slide check in
// on_get_request ("if (!session->slide || *(session->slide) != id)") —
// a keep-alive connection making repeated requests against the same slide
// does one cache lookup, not one per request, and the session's own
// reference keeps that slide's handle alive between requests even if
// every other caller releases theirs.
type Session struct {
	mu     sync.Mutex
	connID string
	id     string
	handle *slide.Handle
}

// NewSession creates an empty per-connection session, tagged with a random
// identifier used only for log correlation (§6.3's per-connection log
// lines).
func NewSession() *Session {
	return &Session{connID: uuid.NewString()}
}

// ConnID returns the session's log-correlation identifier.
func (s *Session) ConnID() string {
	return s.connID
}

// slideFor returns a handle to the slide named id, reusing the session's
// currently held handle when it already refers to id. The returned handle
// is owned jointly by the session and the caller; callers must not Release
// it themselves — Close (or the next slideFor call for a different id)
// does that.
func (s *Session) slideFor(id string, cache *slidecache.Cache) (*slide.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil && s.id == id {
		return s.handle, nil
	}
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
		s.id = ""
	}

	h, err := cache.Get(id + ".iris")
	if err != nil {
		return nil, err
	}
	s.handle = h
	s.id = id
	return h, nil
}

// Close releases any slide handle this session is holding. It must be
// called once the connection it belongs to is torn down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
		s.id = ""
	}
}
