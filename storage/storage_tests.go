package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bittorrent"
)

func testSummary(b byte, name string) bittorrent.Summary {
	var ih bittorrent.InfoHash
	for i := range ih {
		ih[i] = b
	}

	return bittorrent.Summary{
		InfoHash:    ih,
		Name:        name,
		Length:      int64(b) * 1024,
		PieceLength: 16384,
		NumPieces:   1,
		Files: []bittorrent.File{
			{Path: []string{name, "a"}, Length: int64(b) * 512},
			{Path: []string{name, "b"}, Length: int64(b) * 512},
		},
		Trackers: []string{"http://tracker.example.com/announce"},
	}
}

// TestSummaryStore tests a SummaryStore implementation against the
// interface.
func TestSummaryStore(t *testing.T, s SummaryStore) {
	first := testSummary(1, "first")
	second := testSummary(2, "second")

	n, err := s.Len()
	require.Nil(t, err)
	require.Equal(t, 0, n)

	_, err = s.Get(first.InfoHash)
	require.Equal(t, ErrResourceDoesNotExist, err)
	require.Equal(t, ErrResourceDoesNotExist, s.Delete(first.InfoHash))

	created, err := s.Put(first)
	require.Nil(t, err)
	require.True(t, created)

	created, err = s.Put(second)
	require.Nil(t, err)
	require.True(t, created)

	got, err := s.Get(first.InfoHash)
	require.Nil(t, err)
	require.Equal(t, first, got)

	n, err = s.Len()
	require.Nil(t, err)
	require.Equal(t, 2, n)

	// Replacing a summary keeps the count and returns the new contents.
	renamed := first
	renamed.Name = "renamed"
	created, err = s.Put(renamed)
	require.Nil(t, err)
	require.False(t, created)

	got, err = s.Get(first.InfoHash)
	require.Nil(t, err)
	require.Equal(t, "renamed", got.Name)

	n, err = s.Len()
	require.Nil(t, err)
	require.Equal(t, 2, n)

	require.Nil(t, s.Delete(first.InfoHash))
	_, err = s.Get(first.InfoHash)
	require.Equal(t, ErrResourceDoesNotExist, err)

	got, err = s.Get(second.InfoHash)
	require.Nil(t, err)
	require.Equal(t, second, got)

	n, err = s.Len()
	require.Nil(t, err)
	require.Equal(t, 1, n)

	errs := s.Stop().Wait()
	require.Len(t, errs, 0)
}
