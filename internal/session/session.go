package session

import "sync"

// UnknownRevision marks a buffer whose content has not been pushed yet.
// Any observed change counter compares greater than it.
const UnknownRevision = -1

// Identity identifies the buffer currently being synchronized.
type Identity struct {
	Cwd      string `json:"cwd"`
	File     string `json:"file"`
	Filetype string `json:"filetype"`
}

// Snapshot is the payload pushed to the backend on every sync.
// Line and Column are 1-based. For a partial sync Buffer holds only the
// current line; for a full sync it holds every line of the buffer.
type Snapshot struct {
	Identity
	Revision  int      `json:"revision"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	LineCount int      `json:"lineCount"`
	Buffer    []string `json:"buffer"`
}

// Session is the synchronization state of one editor session.
// It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	identity Identity
	revision int

	gate *Gate
}

// New creates a session with an unknown revision and an open gate.
func New() *Session {
	return &Session{
		revision: UnknownRevision,
		gate:     NewGate(),
	}
}

// Gate returns the session's sync gate.
func (s *Session) Gate() *Gate {
	return s.gate
}

// Reset switches the session to a new buffer. The revision goes back to
// UnknownRevision so the next check always treats the buffer as changed.
func (s *Session) Reset(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.revision = UnknownRevision
}

// Identity returns the identity of the active buffer.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Revision returns the stored high-water revision.
func (s *Session) Revision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Snapshot builds a sync payload from the current identity and revision.
func (s *Session) Snapshot(line, column, lineCount int, buffer []string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Identity:  s.identity,
		Revision:  s.revision,
		Line:      line,
		Column:    column,
		LineCount: lineCount,
		Buffer:    buffer,
	}
}
