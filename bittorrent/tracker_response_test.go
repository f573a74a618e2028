package bittorrent

import (
	"errors"
	"net"
	"testing"
	"time"

	anacrolix "github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bencode"
)

func TestParseAnnounceResponseCompact(t *testing.T) {
	buf := []byte("d8:completei3e10:downloadedi0e10:incompletei1e8:intervali1922e12:min intervali961e5:peers12:" +
		"\x0a\x00\x00\x01\x1a\xe1\xc0\xa8\x01\x02\x00\x50" +
		"6:peers618:\x20\x01\x0d\xb8\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01\x1a\xe1e")

	resp, err := ParseAnnounceResponse(buf, bencode.DefaultConfig)
	require.Nil(t, err)

	require.True(t, resp.Compact)
	require.Equal(t, int64(3), resp.Complete)
	require.Equal(t, int64(1), resp.Incomplete)
	require.Equal(t, 1922*time.Second, resp.Interval)
	require.Equal(t, 961*time.Second, resp.MinInterval)

	require.Len(t, resp.IPv4Peers, 2)
	require.True(t, net.IPv4(10, 0, 0, 1).Equal(resp.IPv4Peers[0].IP))
	require.Equal(t, uint16(6881), resp.IPv4Peers[0].Port)
	require.Equal(t, "192.168.1.2:80", resp.IPv4Peers[1].String())

	require.Len(t, resp.IPv6Peers, 1)
	require.Equal(t, "[2001:db8::1]:6881", resp.IPv6Peers[0].String())
}

func TestParseAnnounceResponseDictPeers(t *testing.T) {
	peerID := "-BD0001-abcdefghijkl"
	buf, err := anacrolix.Marshal(map[string]interface{}{
		"interval": 1800,
		"peers": []interface{}{
			map[string]interface{}{"ip": "10.0.0.1", "port": 6881, "peer id": peerID},
			map[string]interface{}{"ip": "2001:db8::2", "port": 51413},
		},
		"warning message": "slow down",
	})
	require.Nil(t, err)

	resp, err := ParseAnnounceResponse(buf, bencode.DefaultConfig)
	require.Nil(t, err)

	require.False(t, resp.Compact)
	require.Equal(t, "slow down", resp.WarningMessage)
	require.Len(t, resp.IPv4Peers, 1)
	require.Equal(t, PeerIDFromBytes([]byte(peerID)), resp.IPv4Peers[0].ID)
	require.Len(t, resp.IPv6Peers, 1)
	require.Equal(t, uint16(51413), resp.IPv6Peers[0].Port)
}

func TestParseAnnounceResponseFailure(t *testing.T) {
	_, err := ParseAnnounceResponse([]byte("d14:failure reason17:torrent not founde"), bencode.DefaultConfig)
	require.True(t, errors.Is(err, ErrTrackerFailure))

	var failure *TrackerFailure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "torrent not found", failure.Reason)
}

var invalidAnnounceTests = []struct {
	name  string
	input string
	kind  error
}{
	{"truncated", "d8:interval", bencode.ErrOutOfBounds},
	{"missing interval", "d8:completei1ee", ErrMissingField},
	{"negative interval", "d8:intervali-1ee", ErrInvalidFieldType},
	{"short compact peers", "d8:intervali1e5:peers5:abcdee", ErrInvalidFieldType},
	{"integer peers", "d8:intervali1e5:peersi1ee", ErrInvalidFieldType},
	{"bad peer ip", "d8:intervali1e5:peersld2:ip4:host4:porti1eeee", ErrInvalidFieldType},
	{"bad peer port", "d8:intervali1e5:peersld2:ip8:10.0.0.14:porti70000eeee", ErrInvalidFieldType},
}

func TestParseAnnounceResponseInvalid(t *testing.T) {
	for _, tt := range invalidAnnounceTests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseAnnounceResponse([]byte(tt.input), bencode.DefaultConfig)
			require.Nil(t, resp)
			require.True(t, errors.Is(err, tt.kind), "unexpected error: %v", err)
		})
	}
}

func TestParseScrapeResponse(t *testing.T) {
	ih := InfoHash{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	buf, err := anacrolix.Marshal(map[string]interface{}{
		"files": map[string]interface{}{
			ih.RawString(): map[string]interface{}{
				"complete":   5,
				"incomplete": 2,
				"downloaded": 40,
			},
		},
	})
	require.Nil(t, err)

	scrapes, err := ParseScrapeResponse(buf, bencode.DefaultConfig)
	require.Nil(t, err)
	require.Equal(t, []Scrape{{InfoHash: ih, Snatches: 40, Complete: 5, Incomplete: 2}}, scrapes)

	_, err = ParseScrapeResponse([]byte("d5:filesd3:abcdeee"), bencode.DefaultConfig)
	require.True(t, errors.Is(err, ErrInvalidFieldType))

	_, err = ParseScrapeResponse([]byte("de"), bencode.DefaultConfig)
	require.True(t, errors.Is(err, ErrMissingField))
}
