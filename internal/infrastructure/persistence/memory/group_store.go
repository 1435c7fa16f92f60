package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// GroupStore keeps groups in memory.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[group.ID]*group.Group
	nextID atomic.Uint64
}

// NewGroupStore creates an empty group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[group.ID]*group.Group)}
}

func (s *GroupStore) Create(ctx context.Context, g *group.Group) (*group.Group, error) {
	stored := g.Clone()
	stored.ID = group.ID(s.nextID.Add(1))

	s.mu.Lock()
	s.groups[stored.ID] = stored
	s.mu.Unlock()
	return stored.Clone(), nil
}

func (s *GroupStore) Get(ctx context.Context, id group.ID) (*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, shared.ErrGroupNotFound
	}
	return g.Clone(), nil
}

func (s *GroupStore) Exists(ctx context.Context, id group.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[id]
	return ok, nil
}

func (s *GroupStore) IsMember(ctx context.Context, user shared.UserID, id group.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return false, nil
	}
	return g.IsMember(user), nil
}

func (s *GroupStore) AddMember(ctx context.Context, id group.ID, user shared.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return shared.ErrGroupNotFound
	}
	return g.AddMember(user)
}

func (s *GroupStore) RemoveMember(ctx context.Context, id group.ID, user shared.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return shared.ErrGroupNotFound
	}
	return g.RemoveMember(user)
}

var _ group.Store = (*GroupStore)(nil)
