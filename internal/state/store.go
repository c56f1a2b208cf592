// Package state provides the filesystem-backed session store. Each session is
// one JSON record under <root>/sessions/<id>.json, written atomically and
// validated before being trusted at load time.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/user/chatclaw/internal/types"
)

// ErrSessionNotFound indicates the requested session id is not in the store.
var ErrSessionNotFound = errors.New("state: session not found")

// Store is a JSON-file-backed session store with an in-memory working set and
// an active-session pointer. Sessions are owned exclusively by the Store for
// the process lifetime; callers hold only ids and receive copies.
type Store struct {
	dir      string
	autosave bool

	mu       sync.RWMutex
	sessions map[types.SessionID]*types.Session
	activeID types.SessionID
}

// NewStore creates a Store rooted at dataDir. When autosave is enabled every
// mutation is persisted immediately.
func NewStore(dataDir string, autosave bool) *Store {
	return &Store{
		dir:      filepath.Join(dataDir, "sessions"),
		autosave: autosave,
		sessions: make(map[types.SessionID]*types.Session),
	}
}

// Load enumerates existing session records, validating each before trusting
// it. Corrupt or structurally invalid records are skipped with a diagnostic;
// they never prevent the store from initializing.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read sessions dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable session record", "path", path, "error", err)
			continue
		}
		sess, err := decodeSession(data)
		if err != nil {
			slog.Warn("skipping invalid session record", "path", path, "error", err)
			continue
		}
		s.sessions[sess.ID] = sess
	}
	if data, err := os.ReadFile(s.activePath()); err == nil {
		id := types.SessionID(strings.TrimSpace(string(data)))
		if _, ok := s.sessions[id]; ok {
			s.activeID = id
		}
	}
	slog.Debug("session store loaded", "sessions", len(s.sessions))
	return nil
}

// Create adds a new empty session and persists it.
func (s *Store) Create(name string) (*types.Session, error) {
	now := types.NowMillis()
	sess := &types.Session{
		ID:        types.NewSessionID(),
		Name:      name,
		Messages:  []types.ChatMessage{},
		Context:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	if err := s.persistLocked(sess); err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id types.SessionID) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return cloneSession(sess), true
}

// SetActive marks the given session as active. The pointer is durable so a
// later process continues the same session by default.
func (s *Store) SetActive(id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.activeID = id
	if s.autosave {
		if err := os.WriteFile(s.activePath(), []byte(id), 0o644); err != nil {
			return fmt.Errorf("write active pointer: %w", err)
		}
	}
	return nil
}

// GetActive returns a copy of the active session, if one is set.
func (s *Store) GetActive() (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[s.activeID]
	if !ok {
		return nil, false
	}
	return cloneSession(sess), true
}

// AppendMessage appends a message to the session's transcript, refreshing
// UpdatedAt and persisting.
func (s *Store) AppendMessage(id types.SessionID, msg types.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	// Detach the caller's slices so later mutation cannot reach store state.
	msg.ToolCalls = cloneToolCalls(msg.ToolCalls)
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = types.NowMillis()
	return s.persistLocked(sess)
}

// SetMessageStreaming toggles the streaming flag on a message. The flag is
// the only mutable field of an appended message.
func (s *Store) SetMessageStreaming(id types.SessionID, msgID types.MessageID, streaming bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID == msgID {
			sess.Messages[i].IsStreaming = streaming
			return s.persistLocked(sess)
		}
	}
	return fmt.Errorf("message not found: %s", msgID)
}

// SetClaudeSessionID records the external agent's resumable session id.
// Once set it is only overwritten by a newer run's id; empty values are
// ignored so the id is never cleared.
func (s *Store) SetClaudeSessionID(id types.SessionID, claudeID string) error {
	if claudeID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if sess.ClaudeSessionID == claudeID {
		return nil
	}
	sess.ClaudeSessionID = claudeID
	return s.persistLocked(sess)
}

// Delete removes the session and its durable record. Deleting the active
// session clears the active pointer but does not create a replacement.
func (s *Store) Delete(id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	if s.activeID == id {
		s.activeID = ""
		if err := os.Remove(s.activePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove active pointer: %w", err)
		}
	}
	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session record: %w", err)
	}
	return nil
}

// List returns copies of all sessions, most recently updated first.
func (s *Store) List() []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

func (s *Store) recordPath(id types.SessionID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

func (s *Store) activePath() string {
	return filepath.Join(s.dir, "active")
}

// persistLocked writes the session record atomically (temp file then rename)
// when autosave is enabled. A write failure is reported, never left partially
// applied. Callers must hold s.mu.
func (s *Store) persistLocked(sess *types.Session) error {
	if !s.autosave {
		return nil
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}
	path := s.recordPath(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp session record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp session record: %w", err)
	}
	return nil
}

// cloneSession returns a copy fully detached from the store's own state,
// including each message's tool-call records and their raw input bytes.
func cloneSession(sess *types.Session) *types.Session {
	out := *sess
	out.Messages = make([]types.ChatMessage, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	for i := range out.Messages {
		out.Messages[i].ToolCalls = cloneToolCalls(out.Messages[i].ToolCalls)
	}
	out.Context = make([]string, len(sess.Context))
	copy(out.Context, sess.Context)
	return &out
}

func cloneToolCalls(src []types.ToolCallRecord) []types.ToolCallRecord {
	if len(src) == 0 {
		return nil
	}
	calls := make([]types.ToolCallRecord, len(src))
	copy(calls, src)
	for i := range calls {
		if calls[i].Input != nil {
			in := make(json.RawMessage, len(calls[i].Input))
			copy(in, calls[i].Input)
			calls[i].Input = in
		}
	}
	return calls
}
