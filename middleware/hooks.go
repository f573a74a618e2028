package middleware

import (
	"context"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/pkg/log"
)

// Hook abstracts the concept of anything that needs to interact with a
// parsed metainfo file before its summary is stored or after the response
// has been written.
type Hook interface {
	HandleMetainfo(context.Context, *bittorrent.Metainfo) (context.Context, error)
}

func init() {
	RegisterDriver("require private", funcDriver(NewPrivateHook))
	RegisterDriver("log", funcDriver(NewLogHook))
}

// funcDriver is a Driver for hooks that take no options.
type funcDriver func() Hook

func (d funcDriver) NewHook(_ []byte) (Hook, error) {
	return d(), nil
}

type skipStore struct{}

// SkipStoreKey is a key for the context of a metainfo upload to control
// whether its summary is stored.
// Any non-nil value set for this key will cause the summary not to be
// stored.
var SkipStoreKey = skipStore{}

type requirePrivate struct{}

// ErrNotPrivate is returned by the private hook for public torrents.
var ErrNotPrivate = bittorrent.ClientError("torrent is not private")

// NewPrivateHook returns a Hook that rejects torrents without the private
// flag set.
func NewPrivateHook() Hook {
	return requirePrivate{}
}

func (requirePrivate) HandleMetainfo(ctx context.Context, mi *bittorrent.Metainfo) (context.Context, error) {
	if !mi.Info.Private {
		return ctx, ErrNotPrivate
	}
	return ctx, nil
}

type logHook struct{}

// NewLogHook returns a Hook that logs every metainfo file it sees.
func NewLogHook() Hook {
	return logHook{}
}

func (logHook) HandleMetainfo(ctx context.Context, mi *bittorrent.Metainfo) (context.Context, error) {
	log.Info("handled metainfo", mi)
	return ctx, nil
}
