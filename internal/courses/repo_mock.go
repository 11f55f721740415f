package courses

import (
	"context"
	"sync"
)

type mockRepo struct {
	mutex     sync.Mutex
	nextID    int
	Courses   []Course
	ListCalls int
}

func NewMockRepo() *mockRepo {
	return &mockRepo{
		nextID:  1,
		Courses: make([]Course, 0),
	}
}

func (m *mockRepo) List(_ context.Context) ([]Course, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.ListCalls++
	listed := make([]Course, len(m.Courses))
	copy(listed, m.Courses)
	return listed, nil
}

func (m *mockRepo) Create(_ context.Context, course *Course) (*Course, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := *course
	stored.ID = m.nextID
	m.nextID++
	m.Courses = append(m.Courses, stored)

	created := stored
	return &created, nil
}

func (m *mockRepo) Delete(_ context.Context, id int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, course := range m.Courses {
		if course.ID == id {
			m.Courses = append(m.Courses[:i], m.Courses[i+1:]...)
			return nil
		}
	}
	return ErrCourseNotFound
}
