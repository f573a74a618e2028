// Package bencode implements decoding of bencoded data as defined in BEP 3.
//
// A decoded document is a tree of Values. Every Value is one of Integer,
// String, List or *Dict; a type switch over those four types is exhaustive.
// Decoded trees never alias the input buffer.
package bencode

// Value is a decoded bencode value.
type Value interface {
	isValue()
}

// Integer represents a bencode integer.
type Integer int64

// String represents a bencode byte string.
//
// The bytes are not guaranteed to be valid UTF-8; callers decide how to
// interpret them.
type String []byte

// List represents a bencode list.
type List []Value

func (Integer) isValue() {}
func (String) isValue()  {}
func (List) isValue()    {}
func (*Dict) isValue()   {}

// NewList allocates the memory for a List.
func NewList() List {
	return make(List, 0)
}

// Dict represents a bencode dictionary.
//
// Keys are kept in the order they were first set. Setting an existing key
// replaces its value without moving it.
type Dict struct {
	keys   []string
	values map[string]Value
}

// NewDict allocates the memory for a Dict.
func NewDict() *Dict {
	return &Dict{
		keys:   make([]string, 0),
		values: make(map[string]Value),
	}
}

// Set stores v under key.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Len returns the number of entries in the Dict.
func (d *Dict) Len() int {
	return len(d.keys)
}

// Keys returns the keys of the Dict in insertion order.
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Range calls fn for every entry in insertion order until fn returns false.
func (d *Dict) Range(fn func(key string, v Value) bool) {
	for _, key := range d.keys {
		if !fn(key, d.values[key]) {
			return
		}
	}
}

// KindOf returns a short name for the variant of v, used in error messages.
func KindOf(v Value) string {
	switch v.(type) {
	case Integer:
		return "integer"
	case String:
		return "string"
	case List:
		return "list"
	case *Dict:
		return "dictionary"
	default:
		return "unknown"
	}
}
