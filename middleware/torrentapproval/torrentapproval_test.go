package torrentapproval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/middleware"
)

var cases = []struct {
	cfg      Config
	ih       string
	approved bool
}{
	// Infohash is allowed
	{
		Config{
			Allowlist: []string{"3532cf2d327fad8448c075b4cb42c8136964a435"},
		},
		"3532cf2d327fad8448c075b4cb42c8136964a435",
		true,
	},
	// Infohash is not allowed
	{
		Config{
			Allowlist: []string{"3532cf2d327fad8448c075b4cb42c8136964a435"},
		},
		"4532cf2d327fad8448c075b4cb42c8136964a435",
		false,
	},
	// Infohash is not denied
	{
		Config{
			Denylist: []string{"3532cf2d327fad8448c075b4cb42c8136964a435"},
		},
		"4532cf2d327fad8448c075b4cb42c8136964a435",
		true,
	},
	// Infohash is denied
	{
		Config{
			Denylist: []string{"3532cf2d327fad8448c075b4cb42c8136964a435"},
		},
		"3532cf2d327fad8448c075b4cb42c8136964a435",
		false,
	},
}

func TestHandleMetainfo(t *testing.T) {
	for _, tt := range cases {
		t.Run(fmt.Sprintf("testing hash %s", tt.ih), func(t *testing.T) {
			h, err := NewHook(tt.cfg)
			require.Nil(t, err)

			ih, err := bittorrent.InfoHashFromHexString(tt.ih)
			require.Nil(t, err)

			ctx := context.Background()
			nctx, err := h.HandleMetainfo(ctx, &bittorrent.Metainfo{InfoHash: ih})
			require.Equal(t, ctx, nctx)
			if tt.approved {
				require.Nil(t, err)
			} else {
				require.Equal(t, ErrTorrentUnapproved, err)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewHook(Config{
		Allowlist: []string{"3532cf2d327fad8448c075b4cb42c8136964a435"},
		Denylist:  []string{"4532cf2d327fad8448c075b4cb42c8136964a435"},
	})
	require.NotNil(t, err)

	_, err = NewHook(Config{Denylist: []string{"not hex"}})
	require.NotNil(t, err)
}

func TestRegistered(t *testing.T) {
	hooks, err := middleware.HooksFromHookConfigs([]middleware.HookConfig{{
		Name:    Name,
		Options: map[string]interface{}{"denylist": []string{"3532cf2d327fad8448c075b4cb42c8136964a435"}},
	}})
	require.Nil(t, err)
	require.Len(t, hooks, 1)
}
