// Package bittorrent implements the BitTorrent schemas that are carried in
// bencoded documents: metainfo (.torrent) files and tracker announce
// responses.
package bittorrent

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/chihaya/bdecode/pkg/log"
)

// PeerID represents a peer ID.
type PeerID [20]byte

// PeerIDFromBytes creates a PeerID from a byte slice.
//
// It panics if b is not 20 bytes long.
func PeerIDFromBytes(b []byte) PeerID {
	if len(b) != 20 {
		panic("peer ID must be 20 bytes")
	}

	var buf [20]byte
	copy(buf[:], b)
	return PeerID(buf)
}

// String implements fmt.Stringer, returning a string of hex encoded bytes.
func (p PeerID) String() string {
	return hex.EncodeToString(p[:])
}

// InfoHash represents a version 1 infohash: the SHA-1 of the bencoded info
// dictionary.
type InfoHash [20]byte

// InfoHashFromBytes creates an InfoHash from a byte slice.
//
// It panics if b is not 20 bytes long.
func InfoHashFromBytes(b []byte) InfoHash {
	if len(b) != 20 {
		panic("infohash must be 20 bytes")
	}

	var buf [20]byte
	copy(buf[:], b)
	return InfoHash(buf)
}

// ErrInvalidInfoHash is returned when a hex encoded infohash cannot be
// parsed.
var ErrInvalidInfoHash = ClientError("invalid infohash")

// InfoHashFromHexString parses a base16 encoded InfoHash.
func InfoHashFromHexString(s string) (InfoHash, error) {
	var ih InfoHash
	if len(s) != 40 {
		return ih, ErrInvalidInfoHash
	}

	if _, err := hex.Decode(ih[:], []byte(s)); err != nil {
		return ih, ErrInvalidInfoHash
	}
	return ih, nil
}

// String implements fmt.Stringer, returning the base16 encoded InfoHash.
func (i InfoHash) String() string {
	return fmt.Sprintf("%x", i[:])
}

// RawString returns a 20-byte string of the raw bytes of the InfoHash.
func (i InfoHash) RawString() string {
	return string(i[:])
}

// MarshalText implements encoding.TextMarshaler.
func (i InfoHash) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *InfoHash) UnmarshalText(text []byte) error {
	ih, err := InfoHashFromHexString(string(text))
	if err != nil {
		return err
	}
	*i = ih
	return nil
}

// URLEncoded returns the InfoHash escaped for the info_hash parameter of a
// tracker announce URL.
func (i InfoHash) URLEncoded() string {
	return urlEncodeBytes(i[:])
}

// InfoHashV2 represents a version 2 infohash (BEP 52): the SHA-256 of the
// bencoded info dictionary.
type InfoHashV2 [32]byte

// String implements fmt.Stringer, returning the base16 encoded InfoHashV2.
func (i InfoHashV2) String() string {
	return hex.EncodeToString(i[:])
}

// MarshalText implements encoding.TextMarshaler.
func (i InfoHashV2) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *InfoHashV2) UnmarshalText(text []byte) error {
	if len(text) != 64 {
		return ErrInvalidInfoHash
	}
	if _, err := hex.Decode(i[:], text); err != nil {
		return ErrInvalidInfoHash
	}
	return nil
}

// Truncated returns the first 20 bytes of the hash, which is how version 2
// torrents are identified in places that expect a version 1 infohash.
func (i InfoHashV2) Truncated() InfoHash {
	return InfoHashFromBytes(i[:20])
}

// urlEncodeBytes escapes everything but the RFC 3986 unreserved characters.
func urlEncodeBytes(b []byte) string {
	const hexDigits = "0123456789ABCDEF"

	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, c := range b {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0f])
		}
	}
	return sb.String()
}

// Peer represents the connection details of a peer that is returned in an
// announce response.
type Peer struct {
	ID   PeerID
	IP   net.IP
	Port uint16
}

// String implements fmt.Stringer for a human-friendly representation of a
// Peer.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), fmt.Sprint(p.Port))
}

// LogFields renders the current peer as a set of Logrus fields.
func (p Peer) LogFields() log.Fields {
	return log.Fields{
		"id":   p.ID,
		"ip":   p.IP,
		"port": p.Port,
	}
}

// peersFromCompact splits a compact peer list (BEP 23, BEP 7) into Peers.
// ipLen is net.IPv4len or net.IPv6len.
func peersFromCompact(field string, b []byte, ipLen int) ([]Peer, error) {
	stride := ipLen + 2
	if len(b)%stride != 0 {
		return nil, errors.Wrapf(ErrInvalidFieldType, "%s: compact peer list of %d bytes is not a multiple of %d", field, len(b), stride)
	}

	peers := make([]Peer, 0, len(b)/stride)
	for off := 0; off < len(b); off += stride {
		ip := make(net.IP, ipLen)
		copy(ip, b[off:off+ipLen])
		peers = append(peers, Peer{
			IP:   ip,
			Port: binary.BigEndian.Uint16(b[off+ipLen : off+stride]),
		})
	}
	return peers, nil
}

// ClientError represents an error that is safe to expose to a client of the
// inspection frontend.
type ClientError string

// Error implements the error interface for ClientError.
func (c ClientError) Error() string { return string(c) }
