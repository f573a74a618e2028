package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMergeFielders(t *testing.T) {
	first := Fields{"a": 1}
	merged := mergeFielders(first, nil, Fields{"b": 2})

	require.Equal(t, 1, merged["a"])
	require.Equal(t, 2, merged["2.b"])
	require.Len(t, merged, 2)
	require.Len(t, first, 1, "the first Fielder must not be modified")
}

func TestErrFields(t *testing.T) {
	cause := errors.New("boom")
	fields := Err(errors.Wrap(cause, "context")).LogFields()

	require.Equal(t, "context: boom", fields["error"])
	require.Equal(t, "*errors.fundamental", fields["type"])
}

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetDebug(false)

	require.Nil(t, Configure(Config{JSON: true, Level: "debug"}))
	Debug("decoded", Fields{"bytes": 4})

	var entry map[string]interface{}
	require.Nil(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "decoded", entry["msg"])
	require.Equal(t, float64(4), entry["bytes"])

	require.NotNil(t, Configure(Config{Level: "loud"}))
}
