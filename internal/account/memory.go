package account

import (
	"context"
	"sync"

	"github.com/google/btree"
)

type ownerItem struct {
	principal string
	ownerID   string
}

// MemoryStore keeps account records in ordered in-memory indexes. Used for
// single-process runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	owners   *btree.BTreeG[ownerItem]
	bindings *btree.BTreeG[Binding]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners: btree.NewG(32, func(a, b ownerItem) bool {
			return a.principal < b.principal
		}),
		bindings: btree.NewG(32, func(a, b Binding) bool {
			if a.OwnerID != b.OwnerID {
				return a.OwnerID < b.OwnerID
			}
			return a.AccountID < b.AccountID
		}),
	}
}

func (s *MemoryStore) OwnerOf(_ context.Context, principal string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.owners.Get(ownerItem{principal: principal})
	if !ok {
		return "", ErrNotFound
	}
	return item.ownerID, nil
}

func (s *MemoryStore) Binding(_ context.Context, ownerID, accountID string) (*Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings.Get(Binding{OwnerID: ownerID, AccountID: accountID})
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemoryStore) PutOwner(_ context.Context, principal, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owners.ReplaceOrInsert(ownerItem{principal: principal, ownerID: ownerID})
	return nil
}

func (s *MemoryStore) PutBinding(_ context.Context, b Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings.ReplaceOrInsert(b)
	return nil
}

func (s *MemoryStore) SetTagged(_ context.Context, ownerID, accountID string, tagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings.Get(Binding{OwnerID: ownerID, AccountID: accountID})
	if !ok {
		return ErrNotFound
	}
	b.IsResourcesTagged = tagged
	s.bindings.ReplaceOrInsert(b)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
