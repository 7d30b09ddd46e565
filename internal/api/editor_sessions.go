package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"pixelCV/internal/editor"
	"pixelCV/internal/metrics"
)

// DefaultSessionTTL 是编辑会话的空闲过期时间。
const DefaultSessionTTL = 2 * time.Hour

var errSessionNotFound = errors.New("editor session not found")

type editorSession struct {
	ID       string
	OwnerID  string
	Editor   *editor.Editor
	lastSeen time.Time
}

// SessionStore 在内存中保存编辑会话。会话只属于创建它的 owner，
// 空闲超过 ttl 后在下一次访问时清除。
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*editorSession
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*editorSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create 登记新的编辑会话。
func (s *SessionStore) Create(ownerID string, ed *editor.Editor) *editorSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	sess := &editorSession{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Editor:   ed,
		lastSeen: s.now(),
	}
	s.sessions[sess.ID] = sess
	metrics.SetEditorSessions(len(s.sessions))
	return sess
}

// Get 返回 owner 的会话并刷新空闲计时；其他 owner 的会话视为不存在。
func (s *SessionStore) Get(ownerID, id string) (*editorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return nil, errSessionNotFound
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		metrics.SetEditorSessions(len(s.sessions))
		return nil, errSessionNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

// Delete 结束会话，返回会话是否存在。
func (s *SessionStore) Delete(ownerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.OwnerID != ownerID {
		return false
	}
	delete(s.sessions, id)
	metrics.SetEditorSessions(len(s.sessions))
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
