package bencode

// RawDictValue returns the encoded bytes of the value stored under key in
// the dictionary held by buf.
//
// The whole dictionary is validated as if by DecodeConfig. When key occurs
// more than once the last occurrence is returned. The returned slice is a
// copy.
func RawDictValue(buf []byte, key string, cfg Config) (raw []byte, ok bool, err error) {
	if cfg.MaxInputSize > 0 && len(buf) > cfg.MaxInputSize {
		return nil, false, malformed(cfg.MaxInputSize, "input of %d bytes exceeds the limit of %d bytes", len(buf), cfg.MaxInputSize)
	}

	dec := NewDecoder(buf, cfg)
	if err := dec.expect('d', "dictionary tag"); err != nil {
		return nil, false, err
	}

	if err := dec.enter(); err != nil {
		return nil, false, err
	}

	for {
		done, err := dec.terminator()
		if err != nil {
			return nil, false, err
		} else if done {
			break
		}

		k, err := dec.key()
		if err != nil {
			return nil, false, err
		}

		start := dec.Offset()
		if _, err := dec.value(); err != nil {
			return nil, false, err
		}

		if k == key {
			raw = append(raw[:0], buf[start:dec.Offset()]...)
			ok = true
		}
	}

	if !cfg.AllowTrailingBytes && dec.More() {
		return nil, false, malformed(dec.Offset(), "%d trailing bytes after top-level value", dec.cur.remaining())
	}

	return raw, ok, nil
}
