package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatorFlushesCompleteAlbum(t *testing.T) {
	flushed := make(chan Group, 1)
	a := New(Options{
		Debounce: 30 * time.Millisecond,
		OnFlush:  func(g Group) { flushed <- g },
	})

	a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "album", FileID: "f1"})
	a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "album", FileID: "f2", Caption: "model=mei_runway"})
	a.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "album", FileID: "f3"})

	select {
	case g := <-flushed:
		require.Equal(t, int64(1), g.ChatID)
		require.Equal(t, int64(7), g.UserID)
		require.Equal(t, "model=mei_runway", g.Caption, "caption may arrive on any item")
		require.Equal(t, []string{"f1", "f2", "f3"}, g.FileIDs)
	case <-time.After(time.Second):
		t.Fatal("album never flushed")
	}
}

func TestAggregatorKeepsGroupsSeparate(t *testing.T) {
	flushed := make(chan Group, 2)
	a := New(Options{
		Debounce: 30 * time.Millisecond,
		OnFlush:  func(g Group) { flushed <- g },
	})

	a.Add(Item{ChatID: 1, MediaGroupID: "a", FileID: "f1"})
	a.Add(Item{ChatID: 2, MediaGroupID: "a", FileID: "f2"})

	seen := make(map[int64][]string)
	for i := 0; i < 2; i++ {
		select {
		case g := <-flushed:
			seen[g.ChatID] = g.FileIDs
		case <-time.After(time.Second):
			t.Fatal("missing flush")
		}
	}
	require.Equal(t, []string{"f1"}, seen[1])
	require.Equal(t, []string{"f2"}, seen[2])
}

func TestAggregatorCapsAlbumSize(t *testing.T) {
	flushed := make(chan Group, 1)
	a := New(Options{
		Debounce: 30 * time.Millisecond,
		MaxItems: 2,
		OnFlush:  func(g Group) { flushed <- g },
	})

	a.Add(Item{ChatID: 1, MediaGroupID: "big", FileID: "f1"})
	a.Add(Item{ChatID: 1, MediaGroupID: "big", FileID: "f2"})
	a.Add(Item{ChatID: 1, MediaGroupID: "big", FileID: "f3"})

	select {
	case g := <-flushed:
		require.Equal(t, []string{"f1", "f2"}, g.FileIDs)
	case <-time.After(time.Second):
		t.Fatal("album never flushed")
	}
}

func TestAggregatorStopDropsPendingAlbums(t *testing.T) {
	a := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush:  func(Group) { t.Error("stopped aggregator must not flush") },
	})

	a.Add(Item{ChatID: 1, MediaGroupID: "g", FileID: "f1"})
	a.Stop()

	time.Sleep(60 * time.Millisecond)
}

func TestAggregatorIgnoresIncompleteItems(t *testing.T) {
	a := New(Options{
		Debounce: 10 * time.Millisecond,
		OnFlush:  func(Group) { t.Error("nothing should flush") },
	})

	a.Add(Item{ChatID: 1, FileID: "f1"})
	a.Add(Item{ChatID: 1, MediaGroupID: "g"})

	time.Sleep(50 * time.Millisecond)
}
