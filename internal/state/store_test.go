package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.RecordConversion(Conversion{
		ScriptPath:   "etl/sales.py",
		FlowName:     "sales",
		DatasetCount: 3,
		RecipeCount:  2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.WithinDuration(t, time.Now().UTC(), rec.CreatedAt, 5*time.Second)

	got, err := s.GetConversion(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "etl/sales.py", got.ScriptPath)
	assert.Equal(t, "sales", got.FlowName)
	assert.Equal(t, 3, got.DatasetCount)
	assert.Equal(t, 2, got.RecipeCount)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetConversion("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordFailure(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.RecordConversion(Conversion{
		ScriptPath: "etl/broken.py",
		Status:     StatusFailed,
		Error:      "line 4: unexpected token",
	})
	require.NoError(t, err)

	got, err := s.GetConversion(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "line 4: unexpected token", got.Error)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.RecordConversion(Conversion{
			ScriptPath: name + ".py",
			FlowName:   name,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.ListConversions(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].FlowName)
	assert.Equal(t, "first", all[2].FlowName)

	limited, err := s.ListConversions(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "third", limited[0].FlowName)
}

func TestStore_LatestConversionByScript(t *testing.T) {
	s := openTestStore(t)

	_, err := s.RecordConversion(Conversion{ScriptPath: "a.py", FlowName: "old"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.RecordConversion(Conversion{ScriptPath: "a.py", FlowName: "new"})
	require.NoError(t, err)

	latest, err := s.LatestConversion("a.py")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.FlowName)

	_, err = s.LatestConversion("missing.py")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ClosedStoreRejectsCalls(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.RecordConversion(Conversion{ScriptPath: "x.py"})
	assert.ErrorContains(t, err, "database not opened")
	_, err = s.ListConversions(0)
	assert.ErrorContains(t, err, "database not opened")
}
