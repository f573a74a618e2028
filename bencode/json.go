package bencode

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"
)

// MarshalJSON renders s as a JSON string when it is valid UTF-8 and as
// {"hex": "..."} otherwise.
func (s String) MarshalJSON() ([]byte, error) {
	if utf8.Valid(s) {
		return json.Marshal(string(s))
	}

	return json.Marshal(struct {
		Hex string `json:"hex"`
	}{hex.EncodeToString(s)})
}

// MarshalJSON renders d as a JSON object, keeping the key order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(jsonKey(key))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(d.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// jsonKey returns key unchanged when it is valid UTF-8 and as "0x" followed
// by its hex encoding otherwise, so distinct binary keys stay distinct.
func jsonKey(key string) string {
	if utf8.ValidString(key) {
		return key
	}
	return "0x" + hex.EncodeToString([]byte(key))
}
