package mediagroup

import (
	"sync"
	"time"
)

// Telegram delivers album photos as separate updates sharing a media group
// id, with no end-of-album marker. The aggregator buffers them per album and
// flushes one Group after the stream has been quiet for the debounce window,
// so a multi-garment outfit arrives at the pipeline as a single request.

type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID   int64
	UserID   int64
	Username string
	Caption  string
	FileIDs  []string
}

type Options struct {
	Debounce time.Duration
	MaxItems int
	OnFlush  func(Group)
}

type albumKey struct {
	chatID  int64
	groupID string
}

type album struct {
	group Group
	timer *time.Timer
}

type Aggregator struct {
	debounce time.Duration
	maxItems int
	onFlush  func(Group)

	mu     sync.Mutex
	albums map[albumKey]*album
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}
	// Outfits rarely need more garments than this; extra album photos are
	// dropped rather than ballooning the capability payload.
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = 6
	}

	return &Aggregator{
		debounce: debounce,
		maxItems: maxItems,
		onFlush:  opts.OnFlush,
		albums:   make(map[albumKey]*album),
	}
}

// Add buffers one album photo and restarts the album's debounce timer.
// Items without a media group or file id are ignored.
func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := albumKey{chatID: item.ChatID, groupID: item.MediaGroupID}

	a.mu.Lock()
	defer a.mu.Unlock()

	alb, ok := a.albums[key]
	if !ok {
		alb = &album{group: Group{
			ChatID:   item.ChatID,
			UserID:   item.UserID,
			Username: item.Username,
		}}
		a.albums[key] = alb
	}

	if len(alb.group.FileIDs) < a.maxItems {
		alb.group.FileIDs = append(alb.group.FileIDs, item.FileID)
	}
	// Telegram attaches the caption to an arbitrary item of the album.
	if item.Caption != "" {
		alb.group.Caption = item.Caption
	}

	if alb.timer != nil {
		alb.timer.Stop()
	}
	alb.timer = time.AfterFunc(a.debounce, func() { a.flush(key) })
}

func (a *Aggregator) flush(key albumKey) {
	a.mu.Lock()
	alb, ok := a.albums[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.albums, key)
	a.mu.Unlock()

	if a.onFlush != nil {
		a.onFlush(alb.group)
	}
}

// Stop cancels all pending timers. Buffered albums are dropped, not flushed;
// callers stop the update feed first, so anything still pending is from a
// conversation that will be retried.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, alb := range a.albums {
		if alb.timer != nil {
			alb.timer.Stop()
		}
		delete(a.albums, key)
	}
}
