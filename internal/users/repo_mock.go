package users

import (
	"context"
	"sync"
)

type mockRepo struct {
	mutex  sync.Mutex
	nextID int
	Users  map[int]*User
}

func NewMockRepo() *mockRepo {
	return &mockRepo{
		nextID: 1,
		Users:  make(map[int]*User),
	}
}

func (m *mockRepo) Create(_ context.Context, user *User) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := *user
	stored.ID = m.nextID
	m.nextID++
	m.Users[stored.ID] = &stored

	created := stored
	return &created, nil
}

func (m *mockRepo) GetByID(_ context.Context, id int) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	user, ok := m.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *user
	return &found, nil
}

func (m *mockRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, user := range m.Users {
		if user.Username == username {
			found := *user
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) Delete(_ context.Context, id int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.Users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.Users, id)
	return nil
}
