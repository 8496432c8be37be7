package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/repository"
)

// memUserRepo はメールアドレスの一意制約を持つインメモリのUserRepository。
type memUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*model.User
	byEmail map[string]int64

	// findBarrier が設定されている場合、FindByEmailは全員が検索を終えるまで待つ。
	// 並行初回ログインで全goroutineが「未登録」を観測する状況を再現する。
	findBarrier *sync.WaitGroup

	createFn func(ctx context.Context, user *model.User) error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[int64]*model.User),
		byEmail: make(map[string]int64),
	}
}

func (m *memUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	var found *model.User
	if id, ok := m.byEmail[email]; ok {
		cp := *m.byID[id]
		found = &cp
	}
	barrier := m.findBarrier
	m.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return found, nil
}

func (m *memUserRepo) insertLocked(user *model.User) {
	m.nextID++
	now := time.Now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.AuthProvider == "" {
		user.AuthProvider = model.AuthProviderLocal
	}
	cp := *user
	m.byID[user.ID] = &cp
	m.byEmail[user.Email] = user.ID
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.insertLocked(user)
	return nil
}

func (m *memUserRepo) InsertOrGetByEmail(_ context.Context, user *model.User) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[user.Email]; ok {
		cp := *m.byID[id]
		return &cp, false, nil
	}
	created := *user
	m.insertLocked(&created)
	return &created, true, nil
}

func (m *memUserRepo) UpdateName(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Name = name
	}
	return nil
}

func (m *memUserRepo) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *memUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var _ repository.UserRepository = (*memUserRepo)(nil)
