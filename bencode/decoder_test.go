package bencode

import (
	"errors"
	"testing"

	anacrolix "github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"
)

func dict(kvs ...interface{}) *Dict {
	d := NewDict()
	for i := 0; i < len(kvs); i += 2 {
		d.Set(kvs[i].(string), kvs[i+1].(Value))
	}
	return d
}

var unmarshalTests = []struct {
	input    string
	expected Value
}{
	{"i42e", Integer(42)},
	{"i-42e", Integer(-42)},
	{"i0e", Integer(0)},
	{"i9223372036854775807e", Integer(9223372036854775807)},
	{"i-9223372036854775808e", Integer(-9223372036854775808)},
	{"i03e", Integer(3)},
	{"i-0e", Integer(0)},

	{"4:spam", String("spam")},
	{"7:example", String("example")},
	{"0:", String{}},
	{"3:\x00\xff\x01", String{0x00, 0xff, 0x01}},

	{"l4:spam4:eggse", List{String("spam"), String("eggs")}},
	{"le", List{}},
	{"lli1eelee", List{List{Integer(1)}, List{}}},

	{"d3:cow3:moo4:spam4:eggse", dict("cow", String("moo"), "spam", String("eggs"))},
	{"d4:name5:Alice3:agei30ee", dict("name", String("Alice"), "age", Integer(30))},
	{"de", NewDict()},
	{"d1:ad1:bl1:cee1:zi1ee", dict("a", dict("b", List{String("c")}), "z", Integer(1))},
	{"d1:ai1e1:ai2ee", dict("a", Integer(2))},
	{"d1:bi1e1:ai2e1:bi3ee", dict("b", Integer(3), "a", Integer(2))},
}

func TestDecode(t *testing.T) {
	for _, tt := range unmarshalTests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.Nil(t, err, "decode should not fail")
			require.Equal(t, tt.expected, got, "decoded values should match the expected results")
		})
	}
}

func TestDecodeKeyOrder(t *testing.T) {
	got, err := Decode([]byte("d4:spam4:eggs3:cow3:mooe"))
	require.Nil(t, err)
	require.Equal(t, []string{"spam", "cow"}, got.(*Dict).Keys())
}

var malformedTests = []struct {
	name  string
	input string
	kind  error
}{
	{"unknown tag", "x", ErrMalformedInput},
	{"empty", "", ErrOutOfBounds},
	{"trailing bytes", "i4e2e", ErrMalformedInput},
	{"short string", "5:abc", ErrOutOfBounds},
	{"missing separator", "5abc", ErrMalformedInput},
	{"unterminated length", "12", ErrOutOfBounds},
	{"empty integer", "ie", ErrMalformedInput},
	{"sign only", "i-e", ErrMalformedInput},
	{"unterminated integer", "i42", ErrOutOfBounds},
	{"bad integer terminator", "i42x", ErrMalformedInput},
	{"integer overflow", "i9223372036854775808e", ErrMalformedInput},
	{"string length overflow", "99999999999999999999:a", ErrMalformedInput},
	{"unterminated list", "l4:spam", ErrOutOfBounds},
	{"unknown tag in list", "lxe", ErrMalformedInput},
	{"dangling key", "d3:cowe", ErrMalformedInput},
	{"odd dictionary entries", "d3:cow3:moo4:spame", ErrMalformedInput},
	{"integer key", "di1ei2ee", ErrMalformedInput},
	{"unterminated dictionary", "d3:cow3:moo", ErrOutOfBounds},
	{"bare terminator", "e", ErrMalformedInput},
}

func TestDecodeMalformed(t *testing.T) {
	for _, tt := range malformedTests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.Nil(t, got, "a failed decode should not return a partial value")
			require.True(t, errors.Is(err, tt.kind), "unexpected error kind: %v", err)

			var serr *SyntaxError
			require.True(t, errors.As(err, &serr))
			require.True(t, serr.Offset >= 0 && serr.Offset <= len(tt.input))
		})
	}
}

func TestDecodeOffsets(t *testing.T) {
	_, err := Decode([]byte("l4:spamxe"))
	var serr *SyntaxError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 7, serr.Offset)

	_, err = Decode([]byte("5:abc"))
	require.True(t, errors.As(err, &serr))
	require.Equal(t, 2, serr.Offset)
}

func TestDecodeConfig(t *testing.T) {
	t.Run("reject negative integers", func(t *testing.T) {
		cfg := Config{RejectNegativeIntegers: true}

		_, err := DecodeConfig([]byte("i-3e"), cfg)
		require.True(t, errors.Is(err, ErrMalformedInput))

		got, err := DecodeConfig([]byte("i3e"), cfg)
		require.Nil(t, err)
		require.Equal(t, Integer(3), got)
	})

	t.Run("allow trailing bytes", func(t *testing.T) {
		got, err := DecodeConfig([]byte("i4e2e"), Config{AllowTrailingBytes: true})
		require.Nil(t, err)
		require.Equal(t, Integer(4), got)
	})

	t.Run("max depth", func(t *testing.T) {
		cfg := Config{MaxDepth: 2}

		_, err := DecodeConfig([]byte("llei1ee"), cfg)
		require.Nil(t, err)

		_, err = DecodeConfig([]byte("llleee"), cfg)
		require.True(t, errors.Is(err, ErrMalformedInput))

		_, err = DecodeConfig([]byte("d1:ad1:bd1:ci1eeee"), cfg)
		require.True(t, errors.Is(err, ErrMalformedInput))
	})

	t.Run("max input size", func(t *testing.T) {
		cfg := Config{MaxInputSize: 4}

		_, err := DecodeConfig([]byte("i42e"), cfg)
		require.Nil(t, err)

		_, err = DecodeConfig([]byte("i420e"), cfg)
		require.True(t, errors.Is(err, ErrMalformedInput))
	})
}

func TestDecoderStream(t *testing.T) {
	dec := NewDecoder([]byte("i1e4:spamle"), Config{AllowTrailingBytes: true})

	var got []Value
	for dec.More() {
		v, err := dec.Decode()
		require.Nil(t, err)
		got = append(got, v)
	}

	require.Equal(t, []Value{Integer(1), String("spam"), List{}}, got)
	require.Equal(t, 11, dec.Offset())
}

func TestDecodeIndependentResults(t *testing.T) {
	buf := []byte("d3:keyl5:valueee")

	first, err := Decode(buf)
	require.Nil(t, err)
	second, err := Decode(buf)
	require.Nil(t, err)
	require.Equal(t, first, second)

	v, _ := first.(*Dict).Get("key")
	s := v.(List)[0].(String)
	s[0] = 'V'

	w, _ := second.(*Dict).Get("key")
	require.Equal(t, String("value"), w.(List)[0])
	require.Equal(t, "d3:keyl5:valueee", string(buf), "decoding must not modify its input")
}

func TestDecodeSharedBuffer(t *testing.T) {
	buf := []byte("l4:spami42ee")

	done := make(chan Value)
	for i := 0; i < 8; i++ {
		go func() {
			v, err := Decode(buf)
			if err != nil {
				done <- nil
				return
			}
			done <- v
		}()
	}

	for i := 0; i < 8; i++ {
		require.Equal(t, List{String("spam"), Integer(42)}, <-done)
	}
}

func TestDecodeReferenceEncoder(t *testing.T) {
	data := map[string]interface{}{
		"announce": "http://tracker.example.com/announce",
		"info": map[string]interface{}{
			"length":       int64(1234),
			"name":         "test",
			"piece length": int64(16384),
			"pieces":       []byte{0xde, 0xad, 0xbe, 0xef},
		},
		"nested": []interface{}{int64(-1), []interface{}{}, map[string]interface{}{}},
	}

	expected := dict(
		"announce", String("http://tracker.example.com/announce"),
		"info", dict(
			"length", Integer(1234),
			"name", String("test"),
			"piece length", Integer(16384),
			"pieces", String{0xde, 0xad, 0xbe, 0xef},
		),
		"nested", List{Integer(-1), List{}, NewDict()},
	)

	buf, err := anacrolix.Marshal(data)
	require.Nil(t, err, "reference encoder should not fail")

	got, err := Decode(buf)
	require.Nil(t, err, "decode should not fail")
	require.True(t, Equal(expected, got), "decoding should equal the encoded value")
}

func BenchmarkDecodeScalar(b *testing.B) {
	s := []byte("7:example")
	n := []byte("i42e")

	for i := 0; i < b.N; i++ {
		_, _ = Decode(s)
		_, _ = Decode(n)
	}
}

func BenchmarkDecodeLarge(b *testing.B) {
	buf, _ := anacrolix.Marshal(map[string]interface{}{
		"k1": []string{"a", "b", "c"},
		"k2": 42,
		"k3": "val",
		"k4": uint(42),
	})

	for i := 0; i < b.N; i++ {
		_, _ = Decode(buf)
	}
}
