package presenter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/soocke/vision-live-go/domain/capture"
	"github.com/soocke/vision-live-go/domain/media"
	"github.com/soocke/vision-live-go/ui/images"
)

// DemoAssets resolves demo scenes by id.
type DemoAssets interface {
	Asset(id string) (media.DemoAsset, bool)
}

// StillCache loads the still image behind the active non-video source in
// the background and keeps only that one. Switching sources cancels the
// previous load and discards its result.
type StillCache struct {
	LoadFile func(media.LocalFileSource) (capture.Still, error)
	Fetch    func(ctx context.Context, url string) (capture.Still, error)
	Demo     DemoAssets
	Logger   *slog.Logger

	mu      sync.Mutex
	key     string
	gen     uint64
	still   capture.Still
	ready   bool
	err     error
	version uint64
	cancel  context.CancelFunc
}

// Get returns the still for src. ready is false while loading; err is the
// load failure, if any. Video-like sources have no still.
func (c *StillCache) Get(src media.Source) (still capture.Still, ready bool, err error) {
	if c == nil {
		return capture.Still{}, false, nil
	}
	key := stillKey(src)
	c.mu.Lock()
	defer c.mu.Unlock()
	if key != c.key {
		c.switchLocked(key, src)
	}
	return c.still, c.ready, c.err
}

// Version changes whenever a load finishes.
func (c *StillCache) Version() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Drop forgets the cached still and cancels any load.
func (c *StillCache) Drop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.switchLocked("", nil)
	c.mu.Unlock()
}

func (c *StillCache) switchLocked(key string, src media.Source) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.key = key
	c.still, c.ready, c.err = capture.Still{}, false, nil
	c.version++
	if key == "" {
		return
	}
	gen := c.gen
	switch s := src.(type) {
	case media.DemoSource:
		// Cheap enough to draw inline.
		if c.Demo == nil {
			return
		}
		if a, ok := c.Demo.Asset(s.AssetID); ok {
			c.still, c.ready = capture.Still{Image: images.RenderDemoAsset(a)}, true
		}
	case media.LocalFileSource:
		if c.LoadFile == nil {
			return
		}
		go func() {
			st, err := c.LoadFile(s)
			c.finish(gen, st, err)
		}()
	case media.SnapshotURLSource:
		if c.Fetch == nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go func() {
			defer cancel()
			st, err := c.Fetch(ctx, s.URL)
			c.finish(gen, st, err)
		}()
	}
}

func (c *StillCache) finish(gen uint64, st capture.Still, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if err != nil && c.Logger != nil {
		c.Logger.Warn("still load", "key", c.key, "error", err)
	}
	c.still, c.err, c.ready = st, err, err == nil
	c.version++
}

// stillKey identifies a still source instance; "" for sources without one.
func stillKey(src media.Source) string {
	switch s := src.(type) {
	case media.LocalFileSource:
		if s.Class == media.Video {
			return ""
		}
		return "file:" + string(s.URL)
	case media.SnapshotURLSource:
		return "url:" + s.URL
	case media.DemoSource:
		return "demo:" + s.AssetID
	}
	return ""
}
