// Package accumulator buffers a user's photos, text and voice transcripts
// until they ask for one consolidated analysis.
package accumulator

import (
	"strings"
	"sync"
)

// BatchLimit is the number of photos in one media group that triggers
// analysis on its own. Albums can hold up to ten photos; the rest of a
// longer album is the conversation layer's concern.
const BatchLimit = 5

// PendingInput is everything collected for one handle since the last
// analysis, cancel or commit.
type PendingInput struct {
	Photos     [][]byte
	Texts      []string // free text and transcripts, in arrival order
	HasVoice   bool
	GroupToken string // media group of the photos being collected, if any
}

func (p PendingInput) Empty() bool {
	return len(p.Photos) == 0 && len(p.Texts) == 0
}

// Context joins the text fragments into the description sent with the photos.
func (p PendingInput) Context() string {
	return strings.Join(p.Texts, "\n")
}

func (p PendingInput) clone() PendingInput {
	out := p
	out.Photos = append([][]byte(nil), p.Photos...)
	out.Texts = append([]string(nil), p.Texts...)
	return out
}

// Accumulator holds one PendingInput per handle.
//
// The mutex only protects the map. Ordering between events of one handle
// is the caller's job: the conversation layer feeds each handle from a
// single goroutine.
type Accumulator struct {
	mu      sync.Mutex
	buffers map[string]*PendingInput
}

func New() *Accumulator {
	return &Accumulator{buffers: make(map[string]*PendingInput)}
}

func (a *Accumulator) buffer(handle string) *PendingInput {
	buf, ok := a.buffers[handle]
	if !ok {
		buf = &PendingInput{}
		a.buffers[handle] = buf
	}
	return buf
}

// AddPhoto appends a photo.
//
// A non-empty groupToken that differs from the stored one starts a new
// batch: the buffer, text included, is reset first. An empty token appends
// to whatever is being collected.
//
// When a grouped photo brings the buffer to BatchLimit photos, the batch is
// returned with complete=true and the buffer is emptied.
func (a *Accumulator) AddPhoto(handle string, image []byte, groupToken string) (batch PendingInput, complete bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.buffer(handle)
	if groupToken != "" && groupToken != buf.GroupToken {
		*buf = PendingInput{GroupToken: groupToken}
	}
	buf.Photos = append(buf.Photos, image)

	if groupToken != "" && len(buf.Photos) >= BatchLimit {
		batch = *buf
		delete(a.buffers, handle)
		return batch, true
	}
	return PendingInput{}, false
}

func (a *Accumulator) AddText(handle, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.buffer(handle)
	buf.Texts = append(buf.Texts, text)
}

func (a *Accumulator) AddVoiceTranscript(handle, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.buffer(handle)
	buf.Texts = append(buf.Texts, text)
	buf.HasVoice = true
}

// Snapshot returns a copy of the handle's buffer. Mutating it does not
// affect the accumulator.
func (a *Accumulator) Snapshot(handle string) PendingInput {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[handle]
	if !ok {
		return PendingInput{}
	}
	return buf.clone()
}

// Take returns the buffer and clears it in one step.
func (a *Accumulator) Take(handle string) PendingInput {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[handle]
	if !ok {
		return PendingInput{}
	}
	delete(a.buffers, handle)
	return *buf
}

// Clear drops the handle's buffer. Clearing an empty buffer is a no-op.
func (a *Accumulator) Clear(handle string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.buffers, handle)
}
