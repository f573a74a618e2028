package redis

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/redigo"
	redigolib "github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// redisBackend bundles the connection pool with the lock manager built on
// top of it.
type redisBackend struct {
	pool    *redigolib.Pool
	redsync *redsync.Redsync
}

func newRedisBackend(cfg *Config, u *redisURL) *redisBackend {
	rc := &redisConnector{
		URL:            u,
		ReadTimeout:    cfg.RedisReadTimeout,
		WriteTimeout:   cfg.RedisWriteTimeout,
		ConnectTimeout: cfg.RedisConnectTimeout,
	}
	pool := rc.NewPool(cfg.RedisMaxIdle)
	return &redisBackend{
		pool:    pool,
		redsync: redsync.New(redigo.NewPool(pool)),
	}
}

// open returns a connection from the pool. It must be closed by the caller.
func (rb *redisBackend) open() redigolib.Conn {
	return rb.pool.Get()
}

// lock acquires the named mutex. The returned func releases it.
func (rb *redisBackend) lock(name string, expiry time.Duration) (func(), error) {
	m := rb.redsync.NewMutex(name, redsync.WithExpiry(expiry), redsync.WithTries(32))
	if err := m.Lock(); err != nil {
		return nil, errors.Wrapf(err, "failed to acquire %s", name)
	}

	return func() { _, _ = m.Unlock() }, nil
}

type redisConnector struct {
	URL            *redisURL
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ConnectTimeout time.Duration
}

// NewPool returns a new pool of Redis connections.
func (rc *redisConnector) NewPool(maxIdle int) *redigolib.Pool {
	return &redigolib.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 240 * time.Second,
		Dial:        rc.open,
		// PINGs connections that have been idle more than 10 seconds.
		TestOnBorrow: func(c redigolib.Conn, t time.Time) error {
			if time.Since(t) < 10*time.Second {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func (rc *redisConnector) open() (redigolib.Conn, error) {
	opts := []redigolib.DialOption{
		redigolib.DialDatabase(rc.URL.DB),
		redigolib.DialReadTimeout(rc.ReadTimeout),
		redigolib.DialWriteTimeout(rc.WriteTimeout),
		redigolib.DialConnectTimeout(rc.ConnectTimeout),
	}

	if rc.URL.Password != "" {
		opts = append(opts, redigolib.DialPassword(rc.URL.Password))
	}

	if rc.URL.SocketPath != "" {
		return redigolib.Dial("unix", rc.URL.SocketPath, opts...)
	}

	return redigolib.Dial("tcp", rc.URL.Host, opts...)
}

// A redisURL represents a parsed Redis URL.
// The general form represented is:
//
//	redis://[password@]host[/db]
//	redis-socket://[password@]path[?db=db]
type redisURL struct {
	Host       string
	SocketPath string
	Password   string
	DB         int
}

// ErrInvalidRedisURL is returned when the broker URL is neither a redis://
// nor a redis-socket:// URL.
var ErrInvalidRedisURL = errors.New("no redis scheme found")

func parseRedisURL(target string) (*redisURL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	ru := &redisURL{}
	if u.User != nil {
		// Both redis://secret@host and redis://:secret@host are accepted.
		if p, ok := u.User.Password(); ok {
			ru.Password = p
		} else {
			ru.Password = u.User.Username()
		}
	}

	switch u.Scheme {
	case "redis":
		ru.Host = u.Host
		if p := strings.Trim(u.Path, "/"); p != "" {
			if ru.DB, err = strconv.Atoi(p); err != nil {
				return nil, errors.Wrapf(err, "invalid redis database %q", p)
			}
		}

	case "redis-socket":
		ru.SocketPath = u.Path
		if db := u.Query().Get("db"); db != "" {
			if ru.DB, err = strconv.Atoi(db); err != nil {
				return nil, errors.Wrapf(err, "invalid redis database %q", db)
			}
		}

	default:
		return nil, ErrInvalidRedisURL
	}

	return ru, nil
}
