package bencode

import (
	"strconv"
)

// A Decoder reads bencoded values from a buffer.
//
// A Decoder must not be used concurrently, but any number of Decoders may
// read the same buffer at once.
type Decoder struct {
	cur   cursor
	cfg   Config
	depth int
}

// NewDecoder returns a new decoder that reads from buf.
//
// buf is never modified.
func NewDecoder(buf []byte, cfg Config) *Decoder {
	return &Decoder{
		cur: cursor{buf: buf},
		cfg: cfg,
	}
}

// Decode deserializes and returns the bencoded value in buf using
// DefaultConfig.
func Decode(buf []byte) (Value, error) {
	return DecodeConfig(buf, DefaultConfig)
}

// DecodeConfig deserializes and returns the bencoded value in buf.
//
// Unless cfg.AllowTrailingBytes is set, buf must hold exactly one value.
func DecodeConfig(buf []byte, cfg Config) (Value, error) {
	if cfg.MaxInputSize > 0 && len(buf) > cfg.MaxInputSize {
		return nil, malformed(cfg.MaxInputSize, "input of %d bytes exceeds the limit of %d bytes", len(buf), cfg.MaxInputSize)
	}

	dec := NewDecoder(buf, cfg)
	v, err := dec.Decode()
	if err != nil {
		return nil, err
	}

	if !cfg.AllowTrailingBytes && dec.More() {
		return nil, malformed(dec.Offset(), "%d trailing bytes after top-level value", dec.cur.remaining())
	}

	return v, nil
}

// Decode unmarshals the next bencoded value in the buffer.
//
// On failure the position of the Decoder is unspecified.
func (dec *Decoder) Decode() (Value, error) {
	dec.depth = 0
	return dec.value()
}

// More reports whether there are unread bytes left in the buffer.
func (dec *Decoder) More() bool {
	return dec.cur.remaining() > 0
}

// Offset returns the number of bytes consumed so far.
func (dec *Decoder) Offset() int {
	return dec.cur.pos
}

func (dec *Decoder) value() (Value, error) {
	tok, err := dec.cur.peek()
	if err != nil {
		return nil, err
	}

	switch {
	case tok == 'i':
		return dec.integer()
	case tok == 'l':
		return dec.list()
	case tok == 'd':
		return dec.dict()
	case isDigit(tok):
		return dec.str()
	default:
		return nil, malformed(dec.cur.pos, "unknown value tag %q", tok)
	}
}

func (dec *Decoder) expect(want byte, what string) error {
	tok, err := dec.cur.next()
	if err != nil {
		return err
	}

	if tok != want {
		return malformed(dec.cur.pos-1, "expected %s %q, found %q", what, want, tok)
	}
	return nil
}

// digits consumes a run of ASCII digits and returns it. The byte that ended
// the run is left unread.
func (dec *Decoder) digits() ([]byte, error) {
	start := dec.cur.pos
	for {
		tok, err := dec.cur.next()
		if err != nil {
			return nil, err
		}

		if !isDigit(tok) {
			if err := dec.cur.unread(); err != nil {
				return nil, err
			}
			return dec.cur.buf[start:dec.cur.pos], nil
		}
	}
}

func (dec *Decoder) integer() (Value, error) {
	if err := dec.expect('i', "integer tag"); err != nil {
		return nil, err
	}
	start := dec.cur.pos

	tok, err := dec.cur.peek()
	if err != nil {
		return nil, err
	}

	negative := tok == '-'
	if negative {
		if dec.cfg.RejectNegativeIntegers {
			return nil, malformed(start, "negative integers are not allowed")
		}
		// The sign was only peeked.
		if _, err := dec.cur.next(); err != nil {
			return nil, err
		}
	}

	run, err := dec.digits()
	if err != nil {
		return nil, err
	}

	if len(run) == 0 {
		return nil, malformed(dec.cur.pos, "integer has no digits")
	}

	n, err := strconv.ParseInt(string(dec.cur.buf[start:dec.cur.pos]), 10, 64)
	if err != nil {
		return nil, malformed(start, "integer %q out of range", dec.cur.buf[start:dec.cur.pos])
	}

	if err := dec.expect('e', "integer terminator"); err != nil {
		return nil, err
	}

	return Integer(n), nil
}

func (dec *Decoder) str() (String, error) {
	start := dec.cur.pos
	run, err := dec.digits()
	if err != nil {
		return nil, err
	}

	if len(run) == 0 {
		return nil, malformed(start, "string has no length")
	}

	length, err := strconv.ParseInt(string(run), 10, 64)
	if err != nil {
		return nil, malformed(start, "string length %q out of range", run)
	}

	if err := dec.expect(':', "string separator"); err != nil {
		return nil, err
	}

	b, err := dec.cur.take(length)
	if err != nil {
		return nil, err
	}

	return String(b), nil
}

func (dec *Decoder) list() (Value, error) {
	if err := dec.expect('l', "list tag"); err != nil {
		return nil, err
	}

	if err := dec.enter(); err != nil {
		return nil, err
	}
	defer dec.leave()

	list := NewList()
	for {
		done, err := dec.terminator()
		if err != nil {
			return nil, err
		} else if done {
			break
		}

		v, err := dec.value()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}

	return list, nil
}

func (dec *Decoder) dict() (Value, error) {
	if err := dec.expect('d', "dictionary tag"); err != nil {
		return nil, err
	}

	if err := dec.enter(); err != nil {
		return nil, err
	}
	defer dec.leave()

	dict := NewDict()
	for {
		done, err := dec.terminator()
		if err != nil {
			return nil, err
		} else if done {
			break
		}

		key, err := dec.key()
		if err != nil {
			return nil, err
		}

		v, err := dec.value()
		if err != nil {
			return nil, err
		}
		dict.Set(key, v)
	}

	return dict, nil
}

// key decodes a dictionary key.
func (dec *Decoder) key() (string, error) {
	tok, err := dec.cur.peek()
	if err != nil {
		return "", err
	}

	if !isDigit(tok) {
		return "", malformed(dec.cur.pos, "dictionary key must be a string, found tag %q", tok)
	}

	s, err := dec.str()
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// terminator consumes an 'e' if it is the next byte.
func (dec *Decoder) terminator() (bool, error) {
	tok, err := dec.cur.next()
	if err != nil {
		return false, err
	} else if tok == 'e' {
		return true, nil
	}
	return false, dec.cur.unread()
}

func (dec *Decoder) enter() error {
	dec.depth++
	if dec.cfg.MaxDepth > 0 && dec.depth > dec.cfg.MaxDepth {
		return malformed(dec.cur.pos-1, "nesting depth exceeds the limit of %d", dec.cfg.MaxDepth)
	}
	return nil
}

func (dec *Decoder) leave() {
	dec.depth--
}
