package fraud

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/verdict/internal/pagination"
)

func TestMemoryStore_ListByAccount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Assessment{
			ID:          fmt.Sprintf("fa_%d", i),
			AccountID:   "acct-1",
			Triggered:   []string{RuleVelocity},
			EvaluatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Record(ctx, &Assessment{ID: "fa_other", AccountID: "acct-2"}))

	got, err := s.ListByAccount(ctx, "acct-1", 3, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "fa_4", got[0].ID)
	assert.Equal(t, "fa_2", got[2].ID)

	all, err := s.ListByAccount(ctx, "acct-1", 0, nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.ListByAccount(ctx, "missing", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := &Assessment{ID: "fa_1", AccountID: "acct-1", Triggered: []string{RuleLargeAmount}}
	require.NoError(t, s.Record(ctx, a))
	a.Triggered[0] = "mutated"

	got, err := s.ListByAccount(ctx, "acct-1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleLargeAmount}, got[0].Triggered)

	got[0].Triggered[0] = "mutated"
	again, err := s.ListByAccount(ctx, "acct-1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleLargeAmount}, again[0].Triggered)
}

func TestMemoryStore_OrdersByEvaluatedAtThenID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Recorded out of order, with a tie on EvaluatedAt.
	for _, a := range []*Assessment{
		{ID: "fa_b", AccountID: "acct-1", EvaluatedAt: now},
		{ID: "fa_old", AccountID: "acct-1", EvaluatedAt: now.Add(-time.Hour)},
		{ID: "fa_new", AccountID: "acct-1", EvaluatedAt: now.Add(time.Hour)},
		{ID: "fa_c", AccountID: "acct-1", EvaluatedAt: now},
	} {
		require.NoError(t, s.Record(ctx, a))
	}

	got, err := s.ListByAccount(ctx, "acct-1", 0, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"fa_new", "fa_c", "fa_b", "fa_old"}, ids)

	after, err := s.ListByAccount(ctx, "acct-1", 10, &pagination.Cursor{At: now, ID: "fa_c"})
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "fa_b", after[0].ID)
	assert.Equal(t, "fa_old", after[1].ID)
}
