package index_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/internal/index"
)

func TestInsertReportsDisplacedEntry(t *testing.T) {
	idx := index.New()

	_, displaced := idx.Insert("k", index.CmdIdx{File: 1, Pos: 0, Len: 10})
	require.False(t, displaced)

	old, displaced := idx.Insert("k", index.CmdIdx{File: 1, Pos: 10, Len: 12})
	require.True(t, displaced)
	require.Equal(t, index.CmdIdx{File: 1, Pos: 0, Len: 10}, old)

	got, ok := idx.Get("k")
	require.True(t, ok)
	require.Equal(t, index.CmdIdx{File: 1, Pos: 10, Len: 12}, got)
}

func TestRemove(t *testing.T) {
	idx := index.New()
	idx.Insert("k", index.CmdIdx{File: 1, Pos: 0, Len: 10})

	old, ok := idx.Remove("k")
	require.True(t, ok)
	require.Equal(t, uint64(10), old.Len)
	require.False(t, idx.Contains("k"))

	_, ok = idx.Remove("k")
	require.False(t, ok)
}

func TestKeysAreSorted(t *testing.T) {
	idx := index.New()
	for _, key := range []string{"zebra", "apple", "mango"} {
		idx.Insert(key, index.CmdIdx{File: 1})
	}

	require.Equal(t, []string{"apple", "mango", "zebra"}, idx.Keys())
	require.Equal(t, 3, idx.Len())
}

func TestLiveBytes(t *testing.T) {
	idx := index.New()
	idx.Insert("a", index.CmdIdx{File: 1, Pos: 0, Len: 10})
	idx.Insert("b", index.CmdIdx{File: 1, Pos: 10, Len: 22})

	require.Equal(t, uint64(32), idx.LiveBytes())

	idx.Update("a", index.CmdIdx{File: 2, Pos: 0, Len: 8})
	require.Equal(t, uint64(30), idx.LiveBytes())
}
