// Package torrentapproval implements a Hook that rejects metainfo files based
// on an allowlist or denylist of infohashes.
package torrentapproval

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/middleware"
)

// Name is the name by which this middleware is registered.
const Name = "torrent approval"

func init() {
	middleware.RegisterDriver(Name, driver{})
}

var _ middleware.Driver = driver{}

type driver struct{}

func (d driver) NewHook(optionBytes []byte) (middleware.Hook, error) {
	var cfg Config
	err := yaml.Unmarshal(optionBytes, &cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid options for middleware %s: %s", Name, err)
	}

	return NewHook(cfg)
}

// ErrTorrentUnapproved is the error returned when an infohash is not
// approved.
var ErrTorrentUnapproved = bittorrent.ClientError("unapproved torrent")

// Config represents all the values required by this middleware to validate
// torrents based on their infohash.
type Config struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

type hook struct {
	approved   map[bittorrent.InfoHash]struct{}
	unapproved map[bittorrent.InfoHash]struct{}
}

// NewHook returns an instance of the torrent approval middleware.
func NewHook(cfg Config) (middleware.Hook, error) {
	if len(cfg.Allowlist) > 0 && len(cfg.Denylist) > 0 {
		return nil, fmt.Errorf("using both allowlist and denylist is invalid")
	}

	approved, err := hashSet("allowlist", cfg.Allowlist)
	if err != nil {
		return nil, err
	}

	unapproved, err := hashSet("denylist", cfg.Denylist)
	if err != nil {
		return nil, err
	}

	return &hook{approved: approved, unapproved: unapproved}, nil
}

func hashSet(name string, hashes []string) (map[bittorrent.InfoHash]struct{}, error) {
	set := make(map[bittorrent.InfoHash]struct{}, len(hashes))
	for _, s := range hashes {
		ih, err := bittorrent.InfoHashFromHexString(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid hash %s", name, s)
		}
		set[ih] = struct{}{}
	}
	return set, nil
}

func (h *hook) HandleMetainfo(ctx context.Context, mi *bittorrent.Metainfo) (context.Context, error) {
	if len(h.approved) > 0 {
		if _, found := h.approved[mi.InfoHash]; !found {
			return ctx, ErrTorrentUnapproved
		}
	}

	if len(h.unapproved) > 0 {
		if _, found := h.unapproved[mi.InfoHash]; found {
			return ctx, ErrTorrentUnapproved
		}
	}

	return ctx, nil
}
