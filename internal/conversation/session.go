package conversation

import "sync"

// Result is an analysis waiting for the user's verdict. Photos and Context
// are what produced it, kept for re-analysis with extra context.
type Result struct {
	Token     string // commit token, makes a repeated "correct" a no-op
	Narrative string
	Photos    [][]byte
	Context   string

	// GroupToken is the media group the photos came from. Telegram albums
	// can be longer than one batch, so later photos of the same group are
	// held for the next analysis instead of replacing this result.
	GroupToken string
}

// session is the transient per-handle state. Its mutex is held for the
// whole of one event, so transitions of a handle never interleave.
type session struct {
	mu     sync.Mutex
	handle string
	state  State
	result *Result
}

type sessionStore struct {
	mu       sync.Mutex
	byHandle map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{byHandle: make(map[string]*session)}
}

// lock returns the handle's session with its mutex held.
func (ss *sessionStore) lock(handle string) *session {
	ss.mu.Lock()
	s, ok := ss.byHandle[handle]
	if !ok {
		s = &session{handle: handle}
		ss.byHandle[handle] = s
	}
	ss.mu.Unlock()

	s.mu.Lock()
	return s
}
