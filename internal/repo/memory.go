package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imemory/server/internal/model"
)

// MemoryUserRepo keeps identities in process memory. It is used in development
// and tests; data is lost on restart.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.Identity
}

// NewMemoryUserRepo creates an empty in-memory UserRepo
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]model.Identity)}
}

func (r *MemoryUserRepo) Create(_ context.Context, u *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u.Email = NormalizeEmail(u.Email)
	if r.conflicts("", u.Email, u.PhoneNumber) {
		return ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.Identity, error) {
	email = NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (r *MemoryUserRepo) GetByPhone(_ context.Context, phone string) (model.Identity, error) {
	if phone == "" {
		return model.Identity{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return model.Identity{}, ErrNotFound
}

func (r *MemoryUserRepo) Save(_ context.Context, u *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	u.Email = NormalizeEmail(u.Email)
	if r.conflicts(u.ID, u.Email, u.PhoneNumber) {
		return ErrDuplicate
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = *u
	return nil
}

// conflicts must be called with the lock held.
func (r *MemoryUserRepo) conflicts(selfID, email, phone string) bool {
	for id, u := range r.users {
		if id == selfID {
			continue
		}
		if u.Email == email || (phone != "" && u.PhoneNumber == phone) {
			return true
		}
	}
	return false
}

// MemoryNoteRepo keeps notes in process memory.
type MemoryNoteRepo struct {
	mu    sync.RWMutex
	notes map[string]model.Note
}

// NewMemoryNoteRepo creates an empty in-memory NoteRepo
func NewMemoryNoteRepo() *MemoryNoteRepo {
	return &MemoryNoteRepo{notes: make(map[string]model.Note)}
}

func (r *MemoryNoteRepo) Create(_ context.Context, n *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}
	r.notes[n.ID] = *n
	return nil
}

func (r *MemoryNoteRepo) GetByID(_ context.Context, id string) (model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return model.Note{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryNoteRepo) ListByUser(_ context.Context, userID string) ([]model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := []model.Note{}
	for _, n := range r.notes {
		if n.UserID == userID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Date.Before(notes[j].Date) })
	return notes, nil
}

func (r *MemoryNoteRepo) Update(_ context.Context, n *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[n.ID]; !ok {
		return ErrNotFound
	}
	r.notes[n.ID] = *n
	return nil
}

func (r *MemoryNoteRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return ErrNotFound
	}
	delete(r.notes, id)
	return nil
}
