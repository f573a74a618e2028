package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bencode"
)

func TestRenderYAMLKeepsOrder(t *testing.T) {
	v, err := bencode.Decode([]byte("d1:zi1e1:al3:cowi-2eee"))
	require.Nil(t, err)

	var buf bytes.Buffer
	require.Nil(t, render(&buf, v, false))
	require.Equal(t, "z: 1\na:\n- cow\n- -2\n", buf.String())
}

func TestRenderYAMLBinaryString(t *testing.T) {
	require.Equal(t, "0xff00", toYAML(bencode.String([]byte{0xff, 0x00})))
	require.Equal(t, "moo", toYAML(bencode.String("moo")))
}

func TestRenderJSON(t *testing.T) {
	v, err := bencode.Decode([]byte("d1:zi1e1:ale0:1:xe"))
	require.Nil(t, err)

	var buf bytes.Buffer
	require.Nil(t, render(&buf, v, true))
	require.JSONEq(t, `{"z": 1, "a": [], "": "x"}`, buf.String())
}
