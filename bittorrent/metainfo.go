package bittorrent

import (
	"crypto/sha1"
	"fmt"
	"net/url"
	"strings"
	"time"

	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/pkg/log"
)

// ErrInvalidMetainfo is returned when a metainfo file is well-formed bencode
// but violates BEP 3 in a way no single field accounts for.
var ErrInvalidMetainfo = ClientError("invalid metainfo")

// File is one entry of a multi-file torrent.
type File struct {
	Path   []string `json:"path"`
	Length int64    `json:"length"`
}

// Info is the info dictionary of a metainfo file.
type Info struct {
	Name        string
	PieceLength int64
	Pieces      []byte
	Private     bool

	// Length is set for single-file torrents, Files for multi-file ones.
	Length int64
	Files  []File
}

// Metainfo represents a parsed .torrent file.
type Metainfo struct {
	Announce     string
	AnnounceList [][]string
	Comment      string
	CreatedBy    string
	CreationDate time.Time
	Encoding     string
	Info         Info

	InfoHash   InfoHash
	InfoHashV2 InfoHashV2
}

// ParseMetainfo parses a .torrent file using bencode.DefaultConfig.
func ParseMetainfo(buf []byte) (*Metainfo, error) {
	return ParseMetainfoConfig(buf, bencode.DefaultConfig)
}

// ParseMetainfoConfig parses a .torrent file.
//
// The infohashes are computed over the info dictionary exactly as it appears
// in buf.
func ParseMetainfoConfig(buf []byte, cfg bencode.Config) (*Metainfo, error) {
	v, err := bencode.DecodeConfig(buf, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode metainfo")
	}

	root, err := newFields("", v)
	if err != nil {
		return nil, err
	}

	var mi Metainfo
	if mi.Announce, _, err = root.str("announce", false); err != nil {
		return nil, err
	}

	if mi.AnnounceList, err = parseAnnounceList(root); err != nil {
		return nil, err
	}

	if mi.Comment, _, err = root.str("comment", false); err != nil {
		return nil, err
	}

	if mi.CreatedBy, _, err = root.str("created by", false); err != nil {
		return nil, err
	}

	if mi.Encoding, _, err = root.str("encoding", false); err != nil {
		return nil, err
	}

	created, ok, err := root.integer("creation date", false)
	if err != nil {
		return nil, err
	} else if ok {
		mi.CreationDate = time.Unix(created, 0).UTC()
	}

	info, _, err := root.sub("info", true)
	if err != nil {
		return nil, err
	}

	if mi.Info, err = parseInfo(info); err != nil {
		return nil, err
	}

	raw, _, err := bencode.RawDictValue(buf, "info", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract info dictionary")
	}
	mi.InfoHash = sha1.Sum(raw)
	mi.InfoHashV2 = sha256.Sum256(raw)

	log.Debug("parsed metainfo", &mi)
	return &mi, nil
}

func parseAnnounceList(root fields) ([][]string, error) {
	tiers, ok, err := root.list("announce-list", false)
	if err != nil || !ok {
		return nil, err
	}

	announceList := make([][]string, 0, len(tiers))
	for i, tier := range tiers {
		path := fmt.Sprintf("announce-list[%d]", i)

		l, ok := tier.(bencode.List)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidFieldType, "%s: expected list, found %s", path, bencode.KindOf(tier))
		}

		urls, err := stringList(path, l)
		if err != nil {
			return nil, err
		}
		announceList = append(announceList, urls)
	}

	return announceList, nil
}

func parseInfo(info fields) (Info, error) {
	var i Info
	var err error

	if i.Name, _, err = info.str("name", true); err != nil {
		return i, err
	}

	if i.PieceLength, _, err = info.nonNegative("piece length", true); err != nil {
		return i, err
	} else if i.PieceLength == 0 {
		return i, errors.Wrap(ErrInvalidFieldType, info.at("piece length")+": must be positive")
	}

	if i.Pieces, _, err = info.bytes("pieces", true); err != nil {
		return i, err
	} else if len(i.Pieces)%sha1.Size != 0 {
		return i, errors.Wrapf(ErrInvalidFieldType, "%s: length %d is not a multiple of %d", info.at("pieces"), len(i.Pieces), sha1.Size)
	}

	private, _, err := info.integer("private", false)
	if err != nil {
		return i, err
	}
	i.Private = private == 1

	length, hasLength, err := info.nonNegative("length", false)
	if err != nil {
		return i, err
	}

	files, hasFiles, err := info.list("files", false)
	if err != nil {
		return i, err
	}

	switch {
	case hasLength && hasFiles:
		return i, errors.Wrap(ErrInvalidMetainfo, "info has both length and files")
	case hasLength:
		i.Length = length
	case hasFiles:
		if i.Files, err = parseFiles(info.at("files"), files); err != nil {
			return i, err
		}
	default:
		return i, errors.Wrap(ErrMissingField, info.at("length"))
	}

	return i, nil
}

func parseFiles(path string, l bencode.List) ([]File, error) {
	files := make([]File, 0, len(l))
	for i, v := range l {
		f, err := newFields(fmt.Sprintf("%s[%d]", path, i), v)
		if err != nil {
			return nil, err
		}

		var file File
		if file.Length, _, err = f.nonNegative("length", true); err != nil {
			return nil, err
		}

		segments, _, err := f.list("path", true)
		if err != nil {
			return nil, err
		}

		if file.Path, err = stringList(f.at("path"), segments); err != nil {
			return nil, err
		} else if len(file.Path) == 0 {
			return nil, errors.Wrap(ErrInvalidFieldType, f.at("path")+": empty path")
		}

		files = append(files, file)
	}

	return files, nil
}

// TotalLength returns the sum of the lengths of all files in the torrent.
func (mi *Metainfo) TotalLength() int64 {
	if mi.Info.Files == nil {
		return mi.Info.Length
	}

	var total int64
	for _, f := range mi.Info.Files {
		total += f.Length
	}
	return total
}

// NumFiles returns the number of files in the torrent.
func (mi *Metainfo) NumFiles() int {
	if mi.Info.Files == nil {
		return 1
	}
	return len(mi.Info.Files)
}

// NumPieces returns the number of pieces in the torrent.
func (mi *Metainfo) NumPieces() int {
	return len(mi.Info.Pieces) / sha1.Size
}

// TrackerURLs returns the announce URL followed by every URL of the
// announce-list, in tier order, without empty or duplicate entries.
func (mi *Metainfo) TrackerURLs() []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0, 1)

	add := func(u string) {
		if strings.TrimSpace(u) == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	add(mi.Announce)
	for _, tier := range mi.AnnounceList {
		for _, u := range tier {
			add(u)
		}
	}

	return urls
}

// Magnet returns a magnet link (BEP 9) for the torrent, carrying its name
// and trackers.
func (mi *Metainfo) Magnet() string {
	q := url.Values{}
	q.Set("dn", mi.Info.Name)
	for _, tr := range mi.TrackerURLs() {
		q.Add("tr", tr)
	}

	// xt goes first and must not be escaped.
	return "magnet:?xt=urn:btih:" + mi.InfoHash.String() + "&" + q.Encode()
}

// LogFields renders the current metainfo as a set of Logrus fields.
func (mi *Metainfo) LogFields() log.Fields {
	return log.Fields{
		"infoHash":    mi.InfoHash,
		"name":        mi.Info.Name,
		"length":      mi.TotalLength(),
		"files":       mi.NumFiles(),
		"pieces":      mi.NumPieces(),
		"pieceLength": mi.Info.PieceLength,
		"private":     mi.Info.Private,
		"trackers":    mi.TrackerURLs(),
	}
}

// Summary is the essential, storable description of a torrent.
type Summary struct {
	InfoHash     InfoHash   `json:"info_hash"`
	InfoHashV2   InfoHashV2 `json:"info_hash_v2"`
	Name         string     `json:"name"`
	Comment      string     `json:"comment,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreationDate int64      `json:"creation_date,omitempty"`
	Length       int64      `json:"length"`
	PieceLength  int64      `json:"piece_length"`
	NumPieces    int        `json:"num_pieces"`
	Files        []File     `json:"files,omitempty"`
	Private      bool       `json:"private"`
	Trackers     []string   `json:"trackers"`
}

// Summary reduces the metainfo to a Summary.
func (mi *Metainfo) Summary() Summary {
	s := Summary{
		InfoHash:    mi.InfoHash,
		InfoHashV2:  mi.InfoHashV2,
		Name:        mi.Info.Name,
		Comment:     mi.Comment,
		CreatedBy:   mi.CreatedBy,
		Length:      mi.TotalLength(),
		PieceLength: mi.Info.PieceLength,
		NumPieces:   mi.NumPieces(),
		Files:       mi.Info.Files,
		Private:     mi.Info.Private,
		Trackers:    mi.TrackerURLs(),
	}

	if !mi.CreationDate.IsZero() {
		s.CreationDate = mi.CreationDate.Unix()
	}

	return s
}

// LogFields renders the current summary as a set of Logrus fields.
func (s Summary) LogFields() log.Fields {
	return log.Fields{
		"infoHash": s.InfoHash,
		"name":     s.Name,
		"length":   s.Length,
		"private":  s.Private,
	}
}
