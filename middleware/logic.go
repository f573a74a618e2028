package middleware

import (
	"context"
	"errors"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/frontend"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/stop"
	"github.com/chihaya/bdecode/storage"
)

// ErrNoStorage is returned by lookups on a Logic without a SummaryStore.
var ErrNoStorage = bittorrent.ClientError("no storage configured")

var _ frontend.InspectionLogic = &Logic{}

// DefaultMaxDepth bounds the nesting of documents handled by a Logic whose
// decoder config leaves MaxDepth unlimited. Unbounded recursion on untrusted
// input overflows the goroutine stack.
const DefaultMaxDepth = 512

// NewLogic creates a new instance of an InspectionLogic that decodes with
// cfg and executes the provided middleware hooks.
//
// A MaxDepth of 0 in cfg is replaced by DefaultMaxDepth.
// store may be nil, in which case summaries are never stored.
func NewLogic(cfg bencode.Config, store storage.SummaryStore, preHooks, postHooks []Hook) *Logic {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
		log.Debug("bounded decoder nesting depth", log.Fields{"maxDepth": cfg.MaxDepth})
	}

	return &Logic{
		cfg:       cfg,
		store:     store,
		preHooks:  preHooks,
		postHooks: postHooks,
	}
}

// Logic is an implementation of the InspectionLogic that functions by
// executing a series of middleware hooks.
type Logic struct {
	cfg       bencode.Config
	store     storage.SummaryStore
	preHooks  []Hook
	postHooks []Hook
}

// HandleDecode decodes an arbitrary bencoded document.
func (l *Logic) HandleDecode(ctx context.Context, buf []byte) (bencode.Value, error) {
	return bencode.DecodeConfig(buf, l.cfg)
}

// HandleMetainfo parses a metainfo file, runs the pre-hooks and stores the
// summary.
func (l *Logic) HandleMetainfo(ctx context.Context, buf []byte) (_ context.Context, mi *bittorrent.Metainfo, created bool, err error) {
	mi, err = bittorrent.ParseMetainfoConfig(buf, l.cfg)
	if err != nil {
		return nil, nil, false, err
	}

	for _, h := range l.preHooks {
		if ctx, err = h.HandleMetainfo(ctx, mi); err != nil {
			return nil, nil, false, err
		}
	}

	if l.store != nil && ctx.Value(SkipStoreKey) == nil {
		if created, err = l.store.Put(mi.Summary()); err != nil {
			return nil, nil, false, err
		}
	}

	return ctx, mi, created, nil
}

// AfterMetainfo runs the post-hooks for a handled metainfo file.
func (l *Logic) AfterMetainfo(ctx context.Context, mi *bittorrent.Metainfo) {
	var err error
	for _, h := range l.postHooks {
		if ctx, err = h.HandleMetainfo(ctx, mi); err != nil {
			log.Error("post-metainfo hooks failed", log.Err(err))
			return
		}
	}
}

// HandleLookup returns the stored summary of a torrent.
func (l *Logic) HandleLookup(ctx context.Context, infoHash bittorrent.InfoHash) (bittorrent.Summary, error) {
	if l.store == nil {
		return bittorrent.Summary{}, ErrNoStorage
	}
	return l.store.Get(infoHash)
}

// HandleForget removes the stored summary of a torrent.
func (l *Logic) HandleForget(ctx context.Context, infoHash bittorrent.InfoHash) error {
	if l.store == nil {
		return ErrNoStorage
	}
	return l.store.Delete(infoHash)
}

// HandleAnnounceResponse parses the body of a tracker announce response.
func (l *Logic) HandleAnnounceResponse(ctx context.Context, buf []byte) (*bittorrent.AnnounceResponse, error) {
	resp, err := bittorrent.ParseAnnounceResponse(buf, l.cfg)
	if err != nil {
		return nil, err
	}

	log.Debug("parsed announce response", resp)
	return resp, nil
}

// HandleScrapeResponse parses the body of a tracker scrape response.
func (l *Logic) HandleScrapeResponse(ctx context.Context, buf []byte) ([]bittorrent.Scrape, error) {
	return bittorrent.ParseScrapeResponse(buf, l.cfg)
}

// Stop stops the Logic.
//
// This stops any hooks that implement stop.Stopper.
func (l *Logic) Stop() stop.Result {
	stopGroup := stop.NewGroup()
	for _, hook := range l.preHooks {
		stoppable, ok := hook.(stop.Stopper)
		if ok {
			stopGroup.Add(stoppable)
		}
	}

	for _, hook := range l.postHooks {
		stoppable, ok := hook.(stop.Stopper)
		if ok {
			stopGroup.Add(stoppable)
		}
	}

	return stopGroup.Stop()
}

// IsClientError reports whether err is safe to show to the client that
// caused it.
func IsClientError(err error) bool {
	var ce bittorrent.ClientError
	return errors.As(err, &ce) ||
		errors.Is(err, bencode.ErrMalformedInput) ||
		errors.Is(err, bencode.ErrOutOfBounds)
}
