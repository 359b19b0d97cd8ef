package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xhad/courserag/internal/models"
)

// Manager keeps bounded conversation histories in memory. Each session holds
// at most 2*maxHistory turns; older turns are evicted first.
type Manager struct {
	mu         sync.Mutex
	maxHistory int
	sessions   map[string][]models.Turn
}

func NewManager(maxHistory int) *Manager {
	if maxHistory < 0 {
		maxHistory = 0
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]models.Turn),
	}
}

// CreateSession registers a new empty session and returns its id.
func (m *Manager) CreateSession() string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = nil
	return id
}

// History returns a copy of the session's turns, oldest first. Unknown ids
// have an empty history.
func (m *Manager) History(id string) []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Turn(nil), m.sessions[id]...)
}

// AddExchange appends a user question and the assistant's answer, creating
// the session if needed.
func (m *Manager) AddExchange(id, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.sessions[id],
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)
	if limit := 2 * m.maxHistory; len(turns) > limit {
		turns = append([]models.Turn(nil), turns[len(turns)-limit:]...)
	}
	m.sessions[id] = turns
}

func (m *Manager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
