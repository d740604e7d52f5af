package storage

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ml-wrappers/internal/common"
	"ml-wrappers/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	when := time.Date(2021, 6, 1, 8, 30, 0, 0, time.UTC)
	tbl, err := dataset.NewTable(
		dataset.NumericColumn("amount", 1.5, math.NaN(), math.Inf(1)),
		dataset.DatetimeColumn("created", when, time.Time{}, when.Add(time.Minute)),
		dataset.StringColumn("city", "Lisbon", "", "Porto"),
	)
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(tempDir, dbFile))
	assert.NoError(t, err, "database file was not created")
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir"))
	assert.Error(t, err)
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "closing an already closed store")
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newStore(t)
	in := sampleTable(t)

	require.NoError(t, store.PutTable("orders", common.SplitXTrain, in))

	out, err := store.GetTable("orders", common.SplitXTrain)
	require.NoError(t, err)

	assert.Equal(t, in.Names(), out.Names())
	r, c := out.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)

	amount := out.Column("amount")
	require.Equal(t, dataset.Numeric, amount.Kind)
	assert.Equal(t, 1.5, amount.Floats[0])
	assert.True(t, math.IsNaN(amount.Floats[1]))
	assert.True(t, math.IsInf(amount.Floats[2], 1))

	created := out.Column("created")
	require.Equal(t, dataset.Datetime, created.Kind)
	assert.True(t, created.Times[0].Equal(in.Column("created").Times[0]))
	assert.True(t, created.Times[1].IsZero(), "missing timestamp must stay missing")

	assert.Equal(t, []string{"Lisbon", "", "Porto"}, out.Column("city").Strings)
}

func TestStore_PutReplaces(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.PutTable("orders", common.SplitXTest, sampleTable(t)))

	small, err := dataset.NewTable(dataset.NumericColumn("y", 1))
	require.NoError(t, err)
	require.NoError(t, store.PutTable("orders", common.SplitXTest, small))

	out, err := store.GetTable("orders", common.SplitXTest)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, out.Names())
}

func TestStore_GetMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.GetTable("orders", common.SplitYTrain)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InvalidNames(t *testing.T) {
	store := newStore(t)
	tbl := sampleTable(t)

	for _, tc := range []struct{ name, split string }{
		{"", common.SplitXTrain},
		{"orders", ""},
		{"a/b", common.SplitXTrain},
		{"orders", "x/train"},
	} {
		assert.ErrorIs(t, store.PutTable(tc.name, tc.split, tbl), ErrInvalidName)
	}
	_, err := store.DeleteDataset("a/b")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStore_ListAndDelete(t *testing.T) {
	store := newStore(t)
	tbl := sampleTable(t)

	for _, split := range common.Splits {
		require.NoError(t, store.PutTable("orders", split, tbl))
	}
	require.NoError(t, store.PutTable("order", common.SplitXTrain, tbl))
	require.NoError(t, store.PutTable("users", common.SplitXTrain, tbl))

	all, err := store.ListDatasets("")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	orders, err := store.ListDatasets("orders")
	require.NoError(t, err)
	require.Len(t, orders, 4)
	for _, e := range orders {
		assert.Equal(t, "orders", e.Name)
		assert.Equal(t, 3, e.Rows)
		assert.Equal(t, []string{"amount", "created", "city"}, e.Columns)
	}

	names, err := store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "orders", "users"}, names)

	removed, err := store.DeleteDataset("orders")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	names, err = store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "users"}, names, "prefix deletes must not touch similar names")
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := newStore(t)
	tbl := sampleTable(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			split := common.Splits[i%len(common.Splits)]
			assert.NoError(t, store.PutTable("orders", split, tbl))
			_, err := store.ListDatasets("orders")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := store.ListDatasets("orders")
	require.NoError(t, err)
	assert.Len(t, entries, len(common.Splits))
}
