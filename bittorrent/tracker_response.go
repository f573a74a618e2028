package bittorrent

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/pkg/log"
)

// ErrTrackerFailure is matched by every TrackerFailure.
var ErrTrackerFailure = ClientError("tracker returned a failure")

// TrackerFailure is returned when a tracker response carries a
// "failure reason".
type TrackerFailure struct {
	Reason string
}

func (f *TrackerFailure) Error() string {
	return "tracker failure: " + f.Reason
}

// Unwrap returns ErrTrackerFailure.
func (f *TrackerFailure) Unwrap() error {
	return ErrTrackerFailure
}

// AnnounceResponse represents a decoded HTTP tracker announce response.
type AnnounceResponse struct {
	WarningMessage string
	TrackerID      string
	Complete       int64
	Incomplete     int64
	Interval       time.Duration
	MinInterval    time.Duration
	Compact        bool
	IPv4Peers      []Peer
	IPv6Peers      []Peer
}

// LogFields renders the current response as a set of log fields.
func (r AnnounceResponse) LogFields() log.Fields {
	return log.Fields{
		"warning":     r.WarningMessage,
		"complete":    r.Complete,
		"incomplete":  r.Incomplete,
		"interval":    r.Interval,
		"minInterval": r.MinInterval,
		"compact":     r.Compact,
		"ipv4Peers":   len(r.IPv4Peers),
		"ipv6Peers":   len(r.IPv6Peers),
	}
}

// ParseAnnounceResponse decodes the body of an announce response.
func ParseAnnounceResponse(buf []byte, cfg bencode.Config) (*AnnounceResponse, error) {
	root, err := decodeTrackerResponse(buf, cfg)
	if err != nil {
		return nil, err
	}

	var resp AnnounceResponse
	if resp.WarningMessage, _, err = root.str("warning message", false); err != nil {
		return nil, err
	}

	if resp.TrackerID, _, err = root.str("tracker id", false); err != nil {
		return nil, err
	}

	interval, _, err := root.nonNegative("interval", true)
	if err != nil {
		return nil, err
	}
	resp.Interval = time.Duration(interval) * time.Second

	minInterval, _, err := root.nonNegative("min interval", false)
	if err != nil {
		return nil, err
	}
	resp.MinInterval = time.Duration(minInterval) * time.Second

	if resp.Complete, _, err = root.nonNegative("complete", false); err != nil {
		return nil, err
	}

	if resp.Incomplete, _, err = root.nonNegative("incomplete", false); err != nil {
		return nil, err
	}

	if err := parsePeers(root, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func parsePeers(root fields, resp *AnnounceResponse) error {
	v, ok, err := root.value("peers", false)
	if err != nil || !ok {
		return err
	}

	switch peers := v.(type) {
	case bencode.String:
		resp.Compact = true
		if resp.IPv4Peers, err = peersFromCompact(root.at("peers"), peers, net.IPv4len); err != nil {
			return err
		}

	case bencode.List:
		for i, pv := range peers {
			p, err := peerFromDict(fmt.Sprintf("peers[%d]", i), pv)
			if err != nil {
				return err
			}

			if p.IP.To4() != nil {
				resp.IPv4Peers = append(resp.IPv4Peers, p)
			} else {
				resp.IPv6Peers = append(resp.IPv6Peers, p)
			}
		}

	default:
		return root.wrongType("peers", "string or list", v)
	}

	peers6, ok, err := root.bytes("peers6", false)
	if err != nil || !ok {
		return err
	}

	v6, err := peersFromCompact(root.at("peers6"), peers6, net.IPv6len)
	if err != nil {
		return err
	}
	resp.IPv6Peers = append(resp.IPv6Peers, v6...)
	return nil
}

func peerFromDict(path string, v bencode.Value) (Peer, error) {
	var p Peer

	f, err := newFields(path, v)
	if err != nil {
		return p, err
	}

	ip, _, err := f.str("ip", true)
	if err != nil {
		return p, err
	}

	if p.IP = net.ParseIP(ip); p.IP == nil {
		return p, errors.Wrapf(ErrInvalidFieldType, "%s: %q is not an IP address", f.at("ip"), ip)
	}

	port, _, err := f.integer("port", true)
	if err != nil {
		return p, err
	} else if port < 0 || port > 65535 {
		return p, errors.Wrapf(ErrInvalidFieldType, "%s: port %d out of range", f.at("port"), port)
	}
	p.Port = uint16(port)

	id, ok, err := f.bytes("peer id", false)
	if err != nil {
		return p, err
	} else if ok && len(id) == len(p.ID) {
		p.ID = PeerIDFromBytes(id)
	}

	return p, nil
}

// Scrape represents the state of a swarm that is returned in a scrape
// response.
type Scrape struct {
	InfoHash   InfoHash
	Snatches   int64
	Complete   int64
	Incomplete int64
}

// ParseScrapeResponse decodes the body of a scrape response.
//
// The returned Scrapes follow the order of the "files" dictionary.
func ParseScrapeResponse(buf []byte, cfg bencode.Config) ([]Scrape, error) {
	root, err := decodeTrackerResponse(buf, cfg)
	if err != nil {
		return nil, err
	}

	files, _, err := root.sub("files", true)
	if err != nil {
		return nil, err
	}

	scrapes := make([]Scrape, 0, files.dict.Len())
	for _, key := range files.dict.Keys() {
		if len(key) != len(InfoHash{}) {
			return nil, errors.Wrapf(ErrInvalidFieldType, "%s: key of %d bytes is not an infohash", files.path, len(key))
		}

		f, _, err := files.sub(key, true)
		if err != nil {
			return nil, err
		}
		f.path = files.path + "." + InfoHashFromBytes([]byte(key)).String()

		s := Scrape{InfoHash: InfoHashFromBytes([]byte(key))}
		if s.Complete, _, err = f.nonNegative("complete", false); err != nil {
			return nil, err
		}
		if s.Incomplete, _, err = f.nonNegative("incomplete", false); err != nil {
			return nil, err
		}
		if s.Snatches, _, err = f.nonNegative("downloaded", false); err != nil {
			return nil, err
		}

		scrapes = append(scrapes, s)
	}

	return scrapes, nil
}

// decodeTrackerResponse decodes buf and turns a "failure reason" into a
// TrackerFailure.
func decodeTrackerResponse(buf []byte, cfg bencode.Config) (fields, error) {
	v, err := bencode.DecodeConfig(buf, cfg)
	if err != nil {
		return fields{}, errors.Wrap(err, "failed to decode tracker response")
	}

	root, err := newFields("", v)
	if err != nil {
		return fields{}, err
	}

	reason, failed, err := root.str("failure reason", false)
	if err != nil {
		return fields{}, err
	} else if failed {
		return fields{}, &TrackerFailure{Reason: reason}
	}

	return root, nil
}
