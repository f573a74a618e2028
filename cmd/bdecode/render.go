package main

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"unicode/utf8"

	"gopkg.in/yaml.v2"

	"github.com/chihaya/bdecode/bencode"
)

// toYAML converts a decoded value into the types yaml.v2 renders in order.
// Strings that are not valid UTF-8 are rendered as hex with a "0x" prefix.
func toYAML(v bencode.Value) interface{} {
	switch v := v.(type) {
	case bencode.Integer:
		return int64(v)

	case bencode.String:
		if utf8.Valid(v) {
			return string(v)
		}
		return "0x" + hex.EncodeToString(v)

	case bencode.List:
		out := make([]interface{}, 0, len(v))
		for _, elem := range v {
			out = append(out, toYAML(elem))
		}
		return out

	case *bencode.Dict:
		out := make(yaml.MapSlice, 0, v.Len())
		v.Range(func(key string, elem bencode.Value) bool {
			out = append(out, yaml.MapItem{Key: key, Value: toYAML(elem)})
			return true
		})
		return out
	}

	return nil
}

// render writes v to w as indented JSON or as YAML.
func render(w io.Writer, v interface{}, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if bv, ok := v.(bencode.Value); ok {
		v = toYAML(bv)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	_, err = w.Write(out)
	return err
}
