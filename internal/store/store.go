// Package store defines template persistence shared by the REST and SQLite
// backends.
//
// Stores do no locking across invocations: two concurrent first-time
// enrollments for the same user can both observe an empty set and both
// persist a template.
package store

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"
)

// ErrInvalidUser is returned for an empty user identifier.
var ErrInvalidUser = errors.New("user id is required")

// Template is a stored enrollment template.
type Template struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Template []byte    `json:"-"`
	Quality  int       `json:"quality"`
	Finger   string    `json:"finger,omitempty"`
	Created  time.Time `json:"created_at,omitzero"`
}

// Enrollment is a template to persist.
type Enrollment struct {
	UserID   string
	Template []byte
	Quality  int
	Finger   string
}

// Store lists and persists templates per user.
type Store interface {
	List(ctx context.Context, userID string) ([]Template, error)
	Save(ctx context.Context, e Enrollment) error
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	rows   []Template
	nextID int
	// ListErr and SaveErr, when set, fail the corresponding call.
	ListErr error
	SaveErr error
}

func (m *Memory) List(_ context.Context, userID string) ([]Template, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []Template
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) Save(_ context.Context, e Enrollment) error {
	if e.UserID == "" {
		return ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.nextID++
	m.rows = append(m.rows, Template{
		ID:       strconv.Itoa(m.nextID),
		UserID:   e.UserID,
		Template: slices.Clone(e.Template),
		Quality:  e.Quality,
		Finger:   e.Finger,
		Created:  time.Now().UTC(),
	})
	return nil
}

// Saved returns every persisted template.
func (m *Memory) Saved() []Template {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}
