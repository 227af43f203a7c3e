package tracker

import "sync"

// Registry is the process-wide map from (task, session) to tracker. A single
// lock guards inserts and removals; the trackers themselves synchronize
// their own record appends.
type Registry struct {
	mu       sync.Mutex
	trackers map[key]*Tracker
}

type key struct {
	taskID    string
	sessionID string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[key]*Tracker)}
}

// Obtain returns the tracker for the pair, creating it on first use.
func (r *Registry) Obtain(taskID, sessionID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{taskID, sessionID}
	if t, ok := r.trackers[k]; ok {
		return t
	}
	t := NewTracker(taskID, sessionID)
	r.trackers[k] = t
	return t
}

// Lookup returns the tracker if one exists.
func (r *Registry) Lookup(taskID, sessionID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[key{taskID, sessionID}]
	return t, ok
}

// Remove drops the tracker for the pair, ending its lifetime.
func (r *Registry) Remove(taskID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, key{taskID, sessionID})
}
