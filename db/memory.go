package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 进程内存储，重启后数据丢失。用于 DB_DRIVER=memory 和测试
type MemoryStore struct {
	mu       sync.RWMutex
	users    []User
	tasks    map[int64]Task
	sessions map[string]Session
	nextUser int64
	nextTask int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:    make(map[int64]Task),
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 检查用户是否已存在
	for _, u := range m.users {
		if u.Name == user.Name && u.Surname == user.Surname {
			return ErrDuplicateUser
		}
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.nextUser++
	user.ID = m.nextUser
	m.users = append(m.users, *user)
	return nil
}

func (m *MemoryStore) GetUserByName(_ context.Context, name, surname string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Name == name && u.Surname == surname {
			userCopy := u
			return &userCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			userCopy := u
			return &userCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) HasAdmin(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CreateTask(_ context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.userExists(task.UserID) {
		return ErrNotFound
	}
	m.nextTask++
	task.ID = m.nextTask
	m.tasks[task.ID] = *task
	return nil
}

func (m *MemoryStore) ListTasks(_ context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *MemoryStore) GetTask(_ context.Context, id int64) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) UpdateTaskStatus(_ context.Context, id int64, backlog, process, done string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Backlog, t.Process, t.Done = backlog, process, done
	m.tasks[id] = t
	return nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.userExists(session.UserID) {
		return ErrNotFound
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// 调用方需持有锁
func (m *MemoryStore) userExists(id int64) bool {
	for _, u := range m.users {
		if u.ID == id {
			return true
		}
	}
	return false
}
