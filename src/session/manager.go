package session

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/verseflow/verseflow/src/chat"
	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

// Manager owns the connection-id to session mapping. Sessions are
// created when a connection attaches and closed when it detaches or
// goes idle.
type Manager struct {
	generator  models.Generator
	cache      models.SemanticCacheStore
	classifier models.IntentClassifier
	contexts   *chat.ContextStore
	cfg        *config.SessionConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(generator models.Generator, cache models.SemanticCacheStore, classifier models.IntentClassifier, contexts *chat.ContextStore, cfg *config.SessionConfig) *Manager {
	return &Manager{
		generator:  generator,
		cache:      cache,
		classifier: classifier,
		contexts:   contexts,
		cfg:        cfg,
		sessions:   make(map[string]*Session),
	}
}

// Attach creates a session for the connection and registers it. An
// existing session under the same connection id is closed first: one
// session per connection.
func (m *Manager) Attach(connectionID string, sink OutboundSink) *Session {
	s := New(connectionID, sink, m.generator, m.cache, m.classifier, m.contexts, m.cfg)

	m.mu.Lock()
	old := m.sessions[connectionID]
	m.sessions[connectionID] = s
	m.mu.Unlock()

	if old != nil {
		log.Info("replacing session for reconnected client", "connection", connectionID)
		old.Close()
	}
	return s
}

// Get returns the session for a connection id, or nil.
func (m *Manager) Get(connectionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[connectionID]
}

// Detach closes and unregisters s. A newer session that replaced s
// under the same connection id is left alone.
func (m *Manager) Detach(connectionID string, s *Session) {
	m.mu.Lock()
	if m.sessions[connectionID] == s {
		delete(m.sessions, connectionID)
	}
	m.mu.Unlock()
	s.Close()
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll shuts every session down, used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
