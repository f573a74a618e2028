package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anacrolix "github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bencode"
	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/middleware"
	"github.com/chihaya/bdecode/storage/memory"
)

func newTestFrontend(t *testing.T, cfg Config) http.Handler {
	store, err := memory.New(memory.Config{ShardCount: 1})
	require.Nil(t, err)
	t.Cleanup(func() { store.Stop().Wait() })

	f := &Frontend{
		logic:  middleware.NewLogic(bencode.DefaultConfig, store, nil, nil),
		Config: cfg.Validate(),
	}
	return f.handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestDecodeRoute(t *testing.T) {
	h := newTestFrontend(t, Config{})

	w := do(h, http.MethodPost, "/decode", "d3:cow3:moo4:spaml1:a1:bee")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"cow":"moo","spam":["a","b"]}`, w.Body.String())

	w = do(h, http.MethodPost, "/decode", "4:\xff\xfe\x00\x01")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"hex":"fffe0001"}`, w.Body.String())

	w = do(h, http.MethodPost, "/decode", "i12")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `"offset":3`)

	w = do(h, http.MethodPost, "/decode", "i1ei2e")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodeRouteBoundsNesting(t *testing.T) {
	h := newTestFrontend(t, Config{})
	nested := strings.Repeat("l", 1<<20)

	for _, path := range []string{"/decode", "/metainfo", "/announce-response", "/scrape-response"} {
		t.Run(path, func(t *testing.T) {
			w := do(h, http.MethodPost, path, nested)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var body struct {
				Error  string `json:"error"`
				Offset int    `json:"offset"`
			}
			require.Nil(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Contains(t, body.Error, bencode.ErrMalformedInput.Error())
			require.Equal(t, middleware.DefaultMaxDepth, body.Offset)
		})
	}

	w := do(h, http.MethodPost, "/decode", strings.Repeat("l", middleware.DefaultMaxDepth)+strings.Repeat("e", middleware.DefaultMaxDepth))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestFrontend(t, Config{MaxBodySize: 4})

	w := do(h, http.MethodPost, "/decode", "i1234e")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(h, http.MethodPost, "/decode", "i12e")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMetainfoRoutes(t *testing.T) {
	h := newTestFrontend(t, Config{})

	buf, err := anacrolix.Marshal(map[string]interface{}{
		"announce": "http://tracker.example.com/announce",
		"info": map[string]interface{}{
			"length":       int64(10),
			"name":         "file",
			"piece length": int64(16384),
			"pieces":       "01234567890123456789",
		},
	})
	require.Nil(t, err)

	w := do(h, http.MethodPost, "/metainfo", string(buf))
	require.Equal(t, http.StatusCreated, w.Code)

	var s bittorrent.Summary
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.Equal(t, "file", s.Name)
	require.Equal(t, int64(10), s.Length)

	w = do(h, http.MethodPost, "/metainfo", string(buf))
	require.Equal(t, http.StatusOK, w.Code)

	path := "/metainfo/" + s.InfoHash.String()
	w = do(h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got bittorrent.Summary
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, s, got)

	w = do(h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, http.MethodGet, path, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodGet, "/metainfo/xyz", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/metainfo", "d4:infolee")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "info")
}

func TestAnnounceResponseRoute(t *testing.T) {
	h := newTestFrontend(t, Config{})

	w := do(h, http.MethodPost, "/announce-response", "d8:intervali900e5:peers6:\x7f\x00\x00\x01\x1a\xe1e")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"complete": 0,
		"incomplete": 0,
		"interval": 900,
		"compact": true,
		"peers": ["127.0.0.1:6881"],
		"peers6": []
	}`, w.Body.String())

	w = do(h, http.MethodPost, "/announce-response", "d14:failure reason6:bannede")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "banned")
}

func TestScrapeResponseRoute(t *testing.T) {
	h := newTestFrontend(t, Config{})

	ih := strings.Repeat("\x01", 20)
	w := do(h, http.MethodPost, "/scrape-response", "d5:filesd20:"+ih+"d8:completei4eeee")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[{
		"info_hash": "0101010101010101010101010101010101010101",
		"complete": 4,
		"incomplete": 0,
		"downloaded": 0
	}]`, w.Body.String())
}
