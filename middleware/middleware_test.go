package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bittorrent"
)

func TestPrivateHook(t *testing.T) {
	h := NewPrivateHook()
	ctx := context.Background()

	_, err := h.HandleMetainfo(ctx, &bittorrent.Metainfo{Info: bittorrent.Info{Private: true}})
	require.Nil(t, err)

	_, err = h.HandleMetainfo(ctx, &bittorrent.Metainfo{})
	require.True(t, errors.Is(err, ErrNotPrivate))
	require.True(t, IsClientError(err))
}

func TestLogHookPassesThrough(t *testing.T) {
	ctx := context.WithValue(context.Background(), SkipStoreKey, true)
	out, err := NewLogHook().HandleMetainfo(ctx, &bittorrent.Metainfo{})
	require.Nil(t, err)
	require.Equal(t, true, out.Value(SkipStoreKey))
}

func TestBuiltinDriversRegistered(t *testing.T) {
	for _, name := range []string{"require private", "log"} {
		t.Run(name, func(t *testing.T) {
			hook, err := New(name, nil)
			require.Nil(t, err)
			require.NotNil(t, hook)
		})
	}

	_, err := New("does not exist", nil)
	require.Equal(t, ErrDriverDoesNotExist, err)

	require.Subset(t, Drivers(), []string{"log", "require private"})
}

func TestRegisterDriverPanics(t *testing.T) {
	require.Panics(t, func() { RegisterDriver("", funcDriver(NewLogHook)) })
	require.Panics(t, func() { RegisterDriver("other", nil) })
	require.Panics(t, func() { RegisterDriver("log", funcDriver(NewLogHook)) })
}
