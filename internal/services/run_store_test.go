package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceindex/internal/multilateral"
)

func newRun(id string) *IndexRun {
	return &IndexRun{ID: id, Method: multilateral.TPD, CreatedAt: time.Now()}
}

func TestMemoryRunStore_SaveGet(t *testing.T) {
	store := NewMemoryRunStore(0)

	require.NoError(t, store.Save(newRun("a")))
	assert.ErrorIs(t, store.Save(newRun("a")), ErrRunExists)

	run, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", run.ID)

	// returned runs are copies
	run.Method = multilateral.TDH
	again, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, multilateral.TPD, again.Method)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMemoryRunStore_EvictsOldest(t *testing.T) {
	store := NewMemoryRunStore(2)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(newRun(id)))
	}

	assert.Equal(t, 2, store.Len())
	_, err := store.Get("a")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := store.List(RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func groupRuns(groupID string, ids ...string) []*IndexRun {
	runs := make([]*IndexRun, len(ids))
	for i, id := range ids {
		runs[i] = &IndexRun{ID: id, GroupID: groupID, Group: id, GroupSize: len(ids), Method: multilateral.TPD}
	}
	return runs
}

func TestMemoryRunStore_EvictsWholeGroups(t *testing.T) {
	store := NewMemoryRunStore(3)

	require.NoError(t, store.SaveGroup(groupRuns("g1", "a", "b")))
	require.NoError(t, store.Save(newRun("c")))
	// the oldest run belongs to g1, so both of its runs go
	require.NoError(t, store.SaveGroup(groupRuns("g2", "d", "e")))

	assert.Equal(t, 3, store.Len())
	for _, id := range []string{"a", "b"} {
		_, err := store.Get(id)
		assert.ErrorIs(t, err, ErrRunNotFound, id)
	}

	runs, err := store.List(RunFilter{GroupID: "g2"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestMemoryRunStore_SaveGroupErrors(t *testing.T) {
	store := NewMemoryRunStore(2)

	err := store.SaveGroup(groupRuns("g", "a", "b", "c"))
	assert.ErrorIs(t, err, ErrGroupTooLarge)
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Save(newRun("a")))
	err = store.SaveGroup(groupRuns("g", "b", "a"))
	assert.ErrorIs(t, err, ErrRunExists)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Capacity())
}

func TestMemoryRunStore_ListFilter(t *testing.T) {
	store := NewMemoryRunStore(0)

	runs := []*IndexRun{
		{ID: "1", Method: multilateral.TPD},
		{ID: "2", Method: multilateral.TDH, GroupID: "g"},
		{ID: "3", Method: multilateral.TPD, GroupID: "g"},
		{ID: "4", Method: multilateral.TPD},
	}
	for _, r := range runs {
		require.NoError(t, store.Save(r))
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{"all newest first", RunFilter{}, []string{"4", "3", "2", "1"}},
		{"limit", RunFilter{Limit: 2}, []string{"4", "3"}},
		{"group", RunFilter{GroupID: "g"}, []string{"3", "2"}},
		{"method", RunFilter{Method: multilateral.TPD}, []string{"4", "3", "1"}},
		{"group and method", RunFilter{GroupID: "g", Method: multilateral.TDH}, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, r := range got {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryRunStore_Delete(t *testing.T) {
	store := NewMemoryRunStore(0)
	require.NoError(t, store.Save(newRun("a")))
	require.NoError(t, store.Save(newRun("b")))

	require.NoError(t, store.Delete("a"))
	assert.ErrorIs(t, store.Delete("a"), ErrRunNotFound)

	runs, err := store.List(RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestMemoryRunStore_Concurrent(t *testing.T) {
	store := NewMemoryRunStore(50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id := fmt.Sprintf("%d-%d", i, j)
				assert.NoError(t, store.Save(newRun(id)))
				_, _ = store.Get(id)
				_, _ = store.List(RunFilter{Limit: 5})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
