package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/authflow/internal/model"
)

// MemoryUserRepo is a process-local user store used with STORE_DRIVER=memory
// and in tests.  The email index is checked and written under the same lock
// as the insert, mirroring a unique constraint.
type MemoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint64
	byID    map[uint64]model.User
	byEmail map[string]uint64
	now     func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[uint64]model.User),
		byEmail: make(map[string]uint64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepo) Create(_ context.Context, name, email, passwordHash string) (model.User, error) {
	email = NormalizeEmail(email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[email]; taken {
		return model.User{}, ErrEmailExists
	}
	r.nextID++
	now := r.now()
	u := model.User{
		ID:           r.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byEmail[email] = u.ID
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) MarkVerified(_ context.Context, id uint64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if u.EmailVerifiedAt != nil {
		return false, nil
	}
	u.EmailVerifiedAt = &at
	u.UpdatedAt = at
	r.byID[id] = u
	return true, nil
}

// MemoryTokenRepo is the in-process counterpart of TokenRepo.
type MemoryTokenRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.AccessToken
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{rows: make(map[uint64]model.AccessToken)}
}

func (r *MemoryTokenRepo) Create(_ context.Context, t model.AccessToken) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Abilities = append([]string(nil), t.Abilities...)
	r.rows[t.ID] = t
	return t.ID, nil
}

func (r *MemoryTokenRepo) GetByID(_ context.Context, id uint64) (model.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return model.AccessToken{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryTokenRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *MemoryTokenRepo) DeleteAllForUser(_ context.Context, userID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.rows {
		if t.UserID == userID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryTokenRepo) Touch(_ context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.rows[id]; ok {
		t.LastUsedAt = &at
		r.rows[id] = t
	}
	return nil
}

// CountForUser reports how many tokens the user currently holds.
func (r *MemoryTokenRepo) CountForUser(userID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.rows {
		if t.UserID == userID {
			n++
		}
	}
	return n
}
