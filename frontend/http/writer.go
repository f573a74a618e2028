package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/middleware"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/storage"
)

// ErrBodyTooLarge is returned for request bodies over the configured limit.
var ErrBodyTooLarge = bittorrent.ClientError("request body too large")

type errorBody struct {
	Error  string `json:"error"`
	Offset *int   `json:"offset,omitempty"`
}

// WriteError communicates an error to an API client as JSON.
func WriteError(w http.ResponseWriter, err error) error {
	body := errorBody{Error: "internal server error"}
	status := http.StatusInternalServerError

	var syntaxErr *bencode.SyntaxError
	switch {
	case errors.Is(err, storage.ErrResourceDoesNotExist):
		status = http.StatusNotFound
		body.Error = err.Error()
	case errors.Is(err, ErrBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
		body.Error = err.Error()
	case errors.As(err, &syntaxErr):
		status = http.StatusBadRequest
		body.Error = err.Error()
		body.Offset = &syntaxErr.Offset
	case middleware.IsClientError(err):
		status = http.StatusBadRequest
		body.Error = err.Error()
	default:
		log.Error("http: internal error", log.Err(err))
	}

	return writeJSON(w, status, body)
}

// WriteValue communicates a decoded bencode value as JSON.
func WriteValue(w http.ResponseWriter, v bencode.Value) error {
	return writeJSON(w, http.StatusOK, v)
}

// WriteSummary communicates the summary of a metainfo file.
func WriteSummary(w http.ResponseWriter, s bittorrent.Summary, created bool) error {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return writeJSON(w, status, s)
}

type announceBody struct {
	WarningMessage string   `json:"warning_message,omitempty"`
	TrackerID      string   `json:"tracker_id,omitempty"`
	Complete       int64    `json:"complete"`
	Incomplete     int64    `json:"incomplete"`
	Interval       int64    `json:"interval"`
	MinInterval    int64    `json:"min_interval,omitempty"`
	Compact        bool     `json:"compact"`
	Peers          []string `json:"peers"`
	Peers6         []string `json:"peers6"`
}

// WriteAnnounceResponse communicates a parsed tracker announce response.
// Intervals are written in seconds.
func WriteAnnounceResponse(w http.ResponseWriter, resp *bittorrent.AnnounceResponse) error {
	body := announceBody{
		WarningMessage: resp.WarningMessage,
		TrackerID:      resp.TrackerID,
		Complete:       resp.Complete,
		Incomplete:     resp.Incomplete,
		Interval:       int64(resp.Interval.Seconds()),
		MinInterval:    int64(resp.MinInterval.Seconds()),
		Compact:        resp.Compact,
		Peers:          peerStrings(resp.IPv4Peers),
		Peers6:         peerStrings(resp.IPv6Peers),
	}
	return writeJSON(w, http.StatusOK, body)
}

type scrapeBody struct {
	InfoHash   bittorrent.InfoHash `json:"info_hash"`
	Complete   int64               `json:"complete"`
	Incomplete int64               `json:"incomplete"`
	Downloaded int64               `json:"downloaded"`
}

// WriteScrapeResponse communicates a parsed tracker scrape response.
func WriteScrapeResponse(w http.ResponseWriter, scrapes []bittorrent.Scrape) error {
	body := make([]scrapeBody, 0, len(scrapes))
	for _, s := range scrapes {
		body = append(body, scrapeBody{
			InfoHash:   s.InfoHash,
			Complete:   s.Complete,
			Incomplete: s.Incomplete,
			Downloaded: s.Snatches,
		})
	}
	return writeJSON(w, http.StatusOK, body)
}

func peerStrings(peers []bittorrent.Peer) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
