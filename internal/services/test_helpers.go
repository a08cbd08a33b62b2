package services

import (
	"github.com/stretchr/testify/mock"
)

// MockRunStore is a mock for the RunStore interface
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) Save(run *IndexRun) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockRunStore) SaveGroup(runs []*IndexRun) error {
	args := m.Called(runs)
	return args.Error(0)
}

func (m *MockRunStore) Get(id string) (*IndexRun, error) {
	args := m.Called(id)
	if run, ok := args.Get(0).(*IndexRun); ok {
		return run, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) List(filter RunFilter) ([]*IndexRun, error) {
	args := m.Called(filter)
	if runs, ok := args.Get(0).([]*IndexRun); ok {
		return runs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
