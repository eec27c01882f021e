package session

// RevisionTracker decides whether the active buffer changed since the last
// sync by comparing the editor's change counter against the session's
// high-water mark.
type RevisionTracker struct {
	session *Session
}

// NewRevisionTracker creates a tracker bound to s.
func NewRevisionTracker(s *Session) *RevisionTracker {
	return &RevisionTracker{session: s}
}

// ShouldSync reports whether current is above the stored high-water mark.
// The observation is recorded whatever the answer, so after any call the
// stored revision equals the maximum value seen since the last Reset.
func (t *RevisionTracker) ShouldSync(current int) bool {
	s := t.session
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := current > s.revision
	if changed {
		s.revision = current
	}
	return changed
}
