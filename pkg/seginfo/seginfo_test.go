package seginfo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/ember/pkg/seginfo"
)

func TestSegmentName(t *testing.T) {
	require.Equal(t, "1.log", seginfo.SegmentName(1))
	require.Equal(t, "4294967295.log", seginfo.SegmentName(4294967295))
}

func TestParseSegmentID(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		ok   bool
	}{
		{name: "7.log", id: 7, ok: true},
		{name: "123.log", id: 123, ok: true},
		{name: "0.log", id: 0, ok: true},
		{name: ".log", ok: false},
		{name: "x.log", ok: false},
		{name: "7.txt", ok: false},
		{name: "7", ok: false},
		{name: "-1.log", ok: false},
		{name: "99999999999.log", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := seginfo.ParseSegmentID(tt.name)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.id, id)
			}
		})
	}
}

func TestListSegmentsSortsAndFilters(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"3.log", "1.log", "10.log", "junk.txt", "x.log", "5"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "7.log"), 0755))

	ids, err := seginfo.ListSegments(dir)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3, 10}, ids)
}

func TestListSegmentsMissingDir(t *testing.T) {
	_, err := seginfo.ListSegments(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
