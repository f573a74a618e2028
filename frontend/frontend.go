// Package frontend defines the interface between the transports that accept
// bencoded documents and the logic that inspects them.
package frontend

import (
	"context"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/bittorrent"
)

// InspectionLogic is the interface used by a frontend in order to: (1)
// generate a response from an uploaded document, and (2) asynchronously
// observe anything after the response has been delivered to the client.
type InspectionLogic interface {
	// HandleDecode decodes an arbitrary bencoded document.
	HandleDecode(ctx context.Context, buf []byte) (bencode.Value, error)

	// HandleMetainfo parses a metainfo file and stores its summary.
	// created reports whether the summary was not stored before.
	HandleMetainfo(ctx context.Context, buf []byte) (_ context.Context, mi *bittorrent.Metainfo, created bool, err error)

	// AfterMetainfo does something with a metainfo file after it has been
	// handled.
	AfterMetainfo(ctx context.Context, mi *bittorrent.Metainfo)

	// HandleLookup returns the stored summary of a torrent.
	HandleLookup(ctx context.Context, infoHash bittorrent.InfoHash) (bittorrent.Summary, error)

	// HandleForget removes the stored summary of a torrent.
	HandleForget(ctx context.Context, infoHash bittorrent.InfoHash) error

	// HandleAnnounceResponse parses the body of a tracker announce response.
	HandleAnnounceResponse(ctx context.Context, buf []byte) (*bittorrent.AnnounceResponse, error)

	// HandleScrapeResponse parses the body of a tracker scrape response.
	HandleScrapeResponse(ctx context.Context, buf []byte) ([]bittorrent.Scrape, error)
}
