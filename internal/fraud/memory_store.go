package fraud

import (
	"context"
	"sort"
	"sync"

	"github.com/mbd888/verdict/internal/pagination"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // accountID → assessments, newest first
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: make(map[string][]*Assessment),
	}
}

func (s *MemoryStore) Record(ctx context.Context, assessment *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := copyAssessment(assessment)
	list := s.assessments[a.AccountID]

	// Keep (EvaluatedAt, ID) descending so cursors match the Postgres order.
	i := sort.Search(len(list), func(i int) bool {
		return (&pagination.Cursor{At: a.EvaluatedAt, ID: a.ID}).Follows(list[i].EvaluatedAt, list[i].ID)
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = a
	s.assessments[a.AccountID] = list
	return nil
}

func (s *MemoryStore) ListByAccount(ctx context.Context, accountID string, limit int, before *pagination.Cursor) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Assessment
	for _, a := range s.assessments[accountID] {
		if !before.Follows(a.EvaluatedAt, a.ID) {
			continue
		}
		result = append(result, copyAssessment(a))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func copyAssessment(a *Assessment) *Assessment {
	c := *a
	c.Triggered = append([]string(nil), a.Triggered...)
	return &c
}
