package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/repair"
)

// SessionStatus summarizes whether a session can be exported.
type SessionStatus string

const (
	StatusEmpty    SessionStatus = "empty"
	StatusValid    SessionStatus = "valid"
	StatusPartial  SessionStatus = "partial"
	// StatusConflict means every file is valid but question numbers collide
	// across files.
	StatusConflict SessionStatus = "conflict"
	StatusFailed   SessionStatus = "failed"
)

// ErrUnknownFile is returned by ApplyEdits for a filename not in the session.
var ErrUnknownFile = eris.New("file not in session")

// Session holds the results of one reviewer's conversion run.
type Session struct {
	mu sync.Mutex

	ID        string    `json:"session_id"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	files []*FileResult
}

// NewSession creates an empty session with a fresh ID.
func NewSession(category string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddResults records file results. A result for a filename already in the
// session replaces the earlier one.
func (s *Session) AddResults(results ...*FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if r == nil {
			continue
		}
		if i := s.indexLocked(r.Filename); i >= 0 {
			s.files[i] = r
			continue
		}
		s.files = append(s.files, r)
	}
	s.UpdatedAt = time.Now()
}

func (s *Session) indexLocked(filename string) int {
	for i, f := range s.files {
		if f.Filename == filename {
			return i
		}
	}
	return -1
}

// File returns the result for filename.
func (s *Session) File(filename string) (*FileResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(filename); i >= 0 {
		return s.files[i], true
	}
	return nil, false
}

// Files returns the results in submission order.
func (s *Session) Files() []*FileResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FileResult(nil), s.files...)
}

// ApplyEdits replaces a file's questions with reviewer-edited rows and
// re-validates them against the file's signal. The generator is not called.
// Edits that fail validation are kept so the reviewer can fix them, but the
// file stops being exportable.
func (s *Session) ApplyEdits(filename string, rows []exam.EditRow) (*repair.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(filename)
	if i < 0 {
		return nil, eris.Wrapf(ErrUnknownFile, "pipeline: %s", filename)
	}
	prev := s.files[i]
	if prev.Signal == nil {
		return nil, eris.Wrapf(ErrUnknownFile, "pipeline: %s has no signal", filename)
	}

	questions := exam.RowsToQuestions(rows)
	outcome := repair.Revalidate(questions, prev.LineCount())

	next := *prev
	next.Questions = questions
	next.Outcome = outcome
	next.Err = nil
	if !outcome.Valid() {
		next.Err = &FileError{Filename: filename, Kind: SchemaValidationFailure, Err: outcome.Err}
	}
	s.files[i] = &next
	s.UpdatedAt = time.Now()
	return outcome, nil
}

// CanExport is true only when every file is valid, there is at least one
// question and no question number is used by more than one file.
func (s *Session) CanExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked() == StatusValid
}

func (s *Session) statusLocked() SessionStatus {
	if len(s.files) == 0 {
		return StatusEmpty
	}
	valid, questions := 0, 0
	for _, f := range s.files {
		if f.Valid() {
			valid++
			questions += len(f.Questions)
		}
	}
	switch {
	case valid == len(s.files) && questions > 0:
		if len(s.conflictsLocked()) > 0 {
			return StatusConflict
		}
		return StatusValid
	case valid > 0:
		return StatusPartial
	}
	return StatusFailed
}

// Conflicts lists question numbers shared by more than one valid file. Each
// file validates its own numbers; the exported set must be unique as a whole.
func (s *Session) Conflicts() []exam.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflictsLocked()
}

func (s *Session) conflictsLocked() []exam.Violation {
	var out []exam.Violation
	owner := map[int]string{}
	for _, f := range s.files {
		if !f.Valid() {
			continue
		}
		for k, q := range f.Questions {
			first, dup := owner[q.Number]
			if !dup {
				owner[q.Number] = f.Filename
				continue
			}
			out = append(out, exam.Violation{
				Path:       fmt.Sprintf("%s: questions[%d].number", f.Filename, k),
				Constraint: fmt.Sprintf("must be unique across the session; %d is also used by %s", q.Number, first),
			})
		}
	}
	return out
}

// Questions returns every file's questions sorted by number. Files keep
// submission order for equal numbers.
func (s *Session) Questions() []exam.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []exam.Question
	for _, f := range s.files {
		out = append(out, f.Questions...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Reset drops every result and keeps the session ID and category.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.UpdatedAt = time.Now()
}

// FileSummary is the reviewer-facing state of one file.
type FileSummary struct {
	Filename       string          `json:"filename"`
	ContentHash    string          `json:"content_hash"`
	State          repair.State    `json:"state"`
	Questions      []exam.Question `json:"questions"`
	Warnings       []string        `json:"warnings"`
	RepairAttempts int             `json:"repair_attempts"`
	DecodeFailure  bool            `json:"decode_failure"`
	Error          *FileError      `json:"error,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// SessionSnapshot is a read-only, JSON-safe copy of session state.
type SessionSnapshot struct {
	ID            string           `json:"session_id"`
	Category      string           `json:"category"`
	Status        SessionStatus    `json:"status"`
	CanExport     bool             `json:"can_export"`
	QuestionCount int              `json:"question_count"`
	Conflicts     []exam.Violation `json:"conflicts"`
	Files         []FileSummary    `json:"files"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.statusLocked()
	snap := SessionSnapshot{
		ID:        s.ID,
		Category:  s.Category,
		Status:    status,
		CanExport: status == StatusValid,
		Conflicts: s.conflictsLocked(),
		Files:     make([]FileSummary, 0, len(s.files)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, f := range s.files {
		fs := FileSummary{
			Filename:      f.Filename,
			ContentHash:   f.ContentHash,
			State:         repair.StateFailed,
			Questions:     append([]exam.Question{}, f.Questions...),
			Warnings:      []string{},
			DecodeFailure: f.DecodeFailure,
			Error:         f.Err,
		}
		if f.Outcome != nil {
			fs.State = f.Outcome.State
			fs.RepairAttempts = f.Outcome.RepairAttempts
		}
		if f.Signal != nil {
			fs.Warnings = append(fs.Warnings, f.Signal.Warnings...)
		}
		if f.Err != nil {
			fs.ErrorMessage = f.Err.Error()
		}
		snap.QuestionCount += len(f.Questions)
		snap.Files = append(snap.Files, fs)
	}
	if snap.Conflicts == nil {
		snap.Conflicts = []exam.Violation{}
	}
	return snap
}

// SessionStore is a thread-safe in-memory session registry with TTL eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions.
func (s *SessionStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, session := range s.sessions {
		session.mu.Lock()
		expired := now.Sub(session.UpdatedAt) > s.ttl
		session.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
