package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"messenger-core/internal/repositories"
)

// Store is an in-memory repositories.Store whose transactions simply run fn
// against the same mocks.
type Store struct {
	Rooms       *RoomRepositoryMock
	Messages    *MessageRepositoryMock
	Devices     *DeviceRepositoryMock
	Invitations *InvitationRepositoryMock
	Folders     *FolderRepositoryMock
	Directory   *DirectoryRepositoryMock
	Locks       *LockerMock

	mu  sync.Mutex
	txs int
}

func NewStore() *Store {
	return &Store{
		Rooms:       &RoomRepositoryMock{},
		Messages:    &MessageRepositoryMock{},
		Devices:     &DeviceRepositoryMock{},
		Invitations: &InvitationRepositoryMock{},
		Folders:     &FolderRepositoryMock{},
		Directory:   &DirectoryRepositoryMock{},
		Locks:       &LockerMock{},
	}
}

func (s *Store) Repos() repositories.Repos {
	return repositories.Repos{
		Rooms:       s.Rooms,
		Messages:    s.Messages,
		Devices:     s.Devices,
		Invitations: s.Invitations,
		Folders:     s.Folders,
		Directory:   s.Directory,
		Locks:       s.Locks,
	}
}

func (s *Store) WithinTx(_ context.Context, fn func(repositories.Repos) error) error {
	s.mu.Lock()
	s.txs++
	s.mu.Unlock()
	return fn(s.Repos())
}

// Transactions reports how many units of work were started.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

// AssertExpectations checks every repository mock.
func (s *Store) AssertExpectations(t mock.TestingT) {
	s.Rooms.AssertExpectations(t)
	s.Messages.AssertExpectations(t)
	s.Devices.AssertExpectations(t)
	s.Invitations.AssertExpectations(t)
	s.Folders.AssertExpectations(t)
	s.Directory.AssertExpectations(t)
	s.Locks.AssertExpectations(t)
}
