package transport

import "sync"

// channelRegistry tracks the open event channel per session. Exactly one
// channel may be open per session at a time; registering a new one returns
// the previous channel so the caller can close it.
//
// All methods are safe for concurrent access.
type channelRegistry struct {
	mu       sync.Mutex
	channels map[string]*sseChannel
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{channels: make(map[string]*sseChannel)}
}

// replace stores ch as the session's channel and returns the channel it
// displaced, or nil.
func (r *channelRegistry) replace(sessionID string, ch *sseChannel) *sseChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.channels[sessionID]
	r.channels[sessionID] = ch
	return prev
}

// remove deletes the session's entry, but only if it still refers to ch.
// A channel closing late must not evict its replacement.
func (r *channelRegistry) remove(sessionID string, ch *sseChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[sessionID] == ch {
		delete(r.channels, sessionID)
	}
}
