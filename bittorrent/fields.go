package bittorrent

import (
	"github.com/pkg/errors"

	"github.com/chihaya/bdecode/bencode"
)

var (
	// ErrMissingField is returned when a required key is absent.
	ErrMissingField = ClientError("missing field")

	// ErrInvalidFieldType is returned when a key holds a value of the
	// wrong type or an impossible value.
	ErrInvalidFieldType = ClientError("invalid field type")
)

// fields reads typed entries out of a dictionary, reporting errors with the
// dotted path of the offending key.
type fields struct {
	path string
	dict *bencode.Dict
}

func newFields(path string, v bencode.Value) (fields, error) {
	d, ok := v.(*bencode.Dict)
	if !ok {
		name := path
		if name == "" {
			name = "top-level value"
		}
		return fields{}, errors.Wrapf(ErrInvalidFieldType, "%s: expected dictionary, found %s", name, bencode.KindOf(v))
	}
	return fields{path: path, dict: d}, nil
}

func (f fields) at(key string) string {
	if f.path == "" {
		return key
	}
	return f.path + "." + key
}

func (f fields) value(key string, required bool) (bencode.Value, bool, error) {
	v, ok := f.dict.Get(key)
	if !ok && required {
		return nil, false, errors.Wrap(ErrMissingField, f.at(key))
	}
	return v, ok, nil
}

func (f fields) wrongType(key, want string, v bencode.Value) error {
	return errors.Wrapf(ErrInvalidFieldType, "%s: expected %s, found %s", f.at(key), want, bencode.KindOf(v))
}

func (f fields) bytes(key string, required bool) ([]byte, bool, error) {
	v, ok, err := f.value(key, required)
	if err != nil || !ok {
		return nil, false, err
	}

	s, isString := v.(bencode.String)
	if !isString {
		return nil, false, f.wrongType(key, "string", v)
	}
	return []byte(s), true, nil
}

func (f fields) str(key string, required bool) (string, bool, error) {
	b, ok, err := f.bytes(key, required)
	return string(b), ok, err
}

func (f fields) integer(key string, required bool) (int64, bool, error) {
	v, ok, err := f.value(key, required)
	if err != nil || !ok {
		return 0, false, err
	}

	n, isInteger := v.(bencode.Integer)
	if !isInteger {
		return 0, false, f.wrongType(key, "integer", v)
	}
	return int64(n), true, nil
}

// nonNegative reads an integer that must not be negative.
func (f fields) nonNegative(key string, required bool) (int64, bool, error) {
	n, ok, err := f.integer(key, required)
	if err != nil || !ok {
		return 0, ok, err
	}

	if n < 0 {
		return 0, false, errors.Wrapf(ErrInvalidFieldType, "%s: negative value %d", f.at(key), n)
	}
	return n, true, nil
}

func (f fields) list(key string, required bool) (bencode.List, bool, error) {
	v, ok, err := f.value(key, required)
	if err != nil || !ok {
		return nil, false, err
	}

	l, isList := v.(bencode.List)
	if !isList {
		return nil, false, f.wrongType(key, "list", v)
	}
	return l, true, nil
}

func (f fields) sub(key string, required bool) (fields, bool, error) {
	v, ok, err := f.value(key, required)
	if err != nil || !ok {
		return fields{}, false, err
	}

	sub, err := newFields(f.at(key), v)
	if err != nil {
		return fields{}, false, err
	}
	return sub, true, nil
}

// stringList converts a list of strings, naming elements path[i] in errors.
func stringList(path string, l bencode.List) ([]string, error) {
	out := make([]string, 0, len(l))
	for i, v := range l {
		s, ok := v.(bencode.String)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidFieldType, "%s[%d]: expected string, found %s", path, i, bencode.KindOf(v))
		}
		out = append(out, string(s))
	}
	return out, nil
}
