package bencode

import "errors"

var errAlreadyUnread = errors.New("bencode: byte already unread")

// cursor is a read position over an immutable buffer.
//
// Only the byte returned by the most recent call to next can be unread.
type cursor struct {
	buf       []byte
	pos       int
	canUnread bool
}

func (c *cursor) next() (byte, error) {
	if c.pos >= len(c.buf) {
		c.canUnread = false
		return 0, outOfBounds(c.pos, "need 1 more byte")
	}

	b := c.buf[c.pos]
	c.pos++
	c.canUnread = true
	return b, nil
}

func (c *cursor) unread() error {
	if !c.canUnread || c.pos == 0 {
		return errAlreadyUnread
	}

	c.pos--
	c.canUnread = false
	return nil
}

// peek returns the next byte without consuming it.
func (c *cursor) peek() (byte, error) {
	b, err := c.next()
	if err != nil {
		return 0, err
	}
	return b, c.unread()
}

// take consumes exactly n bytes and returns a copy of them.
func (c *cursor) take(n int64) ([]byte, error) {
	if remaining := int64(len(c.buf) - c.pos); n > remaining {
		c.canUnread = false
		return nil, outOfBounds(c.pos, "string of length %d exceeds the %d remaining bytes", n, remaining)
	}

	out := make([]byte, n)
	copy(out, c.buf[c.pos:])
	c.pos += int(n)
	c.canUnread = false
	return out, nil
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
