// Package redis implements the storage interface for a BitTorrent summary
// store backed by Redis.
//
// Every summary is stored as a JSON string under
// "<prefix>summary:<hex infohash>". Writes of the same infohash are
// serialized with a Redis lock so concurrent frontends agree on which of
// them created the entry.
package redis

import (
	"encoding/json"
	"sync"
	"time"

	redigolib "github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/stop"
	"github.com/chihaya/bdecode/storage"
)

// Name is the name by which this summary store is registered.
const Name = "redis"

// Default config constants.
const (
	defaultRedisBroker         = "redis://myRedis@127.0.0.1:6379/0"
	defaultRedisMaxIdle        = 3
	defaultRedisReadTimeout    = time.Second * 15
	defaultRedisWriteTimeout   = time.Second * 15
	defaultRedisConnectTimeout = time.Second * 15
	defaultLockExpiry          = time.Second * 8
	defaultPromReportInterval  = time.Second * 1
)

func init() {
	// Register the storage driver.
	storage.RegisterDriver(Name, driver{})
}

type driver struct{}

func (d driver) NewSummaryStore(icfg interface{}) (storage.SummaryStore, error) {
	// Marshal the config back into bytes.
	bytes, err := yaml.Marshal(icfg)
	if err != nil {
		return nil, err
	}

	// Unmarshal the bytes into the proper config type.
	var cfg Config
	err = yaml.Unmarshal(bytes, &cfg)
	if err != nil {
		return nil, err
	}

	return New(cfg)
}

// Config holds the configuration of a redis SummaryStore.
type Config struct {
	KeyPrefix           string        `yaml:"key_prefix"`
	SummaryLifetime     time.Duration `yaml:"summary_lifetime"`
	LockExpiry          time.Duration `yaml:"lock_expiry"`
	RedisBroker         string        `yaml:"redis_broker"`
	RedisMaxIdle        int           `yaml:"redis_max_idle"`
	RedisReadTimeout    time.Duration `yaml:"redis_read_timeout"`
	RedisWriteTimeout   time.Duration `yaml:"redis_write_timeout"`
	RedisConnectTimeout time.Duration `yaml:"redis_connect_timeout"`

	PrometheusReportingInterval time.Duration `yaml:"prometheus_reporting_interval"`
}

// LogFields renders the current config as a set of Logrus fields.
func (cfg Config) LogFields() log.Fields {
	return log.Fields{
		"name":                Name,
		"keyPrefix":           cfg.KeyPrefix,
		"summaryLifetime":     cfg.SummaryLifetime,
		"lockExpiry":          cfg.LockExpiry,
		"redisBroker":         cfg.RedisBroker,
		"redisMaxIdle":        cfg.RedisMaxIdle,
		"redisReadTimeout":    cfg.RedisReadTimeout,
		"redisWriteTimeout":   cfg.RedisWriteTimeout,
		"redisConnectTimeout": cfg.RedisConnectTimeout,
		"promReportInterval":  cfg.PrometheusReportingInterval,
	}
}

// Validate sanity checks values set in a config and returns a new config with
// default values replacing anything that is invalid.
//
// This function warns to the logger when a value is changed.
func (cfg Config) Validate() Config {
	validcfg := cfg

	if cfg.SummaryLifetime < 0 {
		validcfg.SummaryLifetime = 0
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".SummaryLifetime",
			"provided": cfg.SummaryLifetime,
			"default":  validcfg.SummaryLifetime,
		})
	}

	if cfg.LockExpiry <= 0 {
		validcfg.LockExpiry = defaultLockExpiry
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".LockExpiry",
			"provided": cfg.LockExpiry,
			"default":  validcfg.LockExpiry,
		})
	}

	if cfg.RedisBroker == "" {
		validcfg.RedisBroker = defaultRedisBroker
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".RedisBroker",
			"provided": cfg.RedisBroker,
			"default":  validcfg.RedisBroker,
		})
	}

	if cfg.RedisMaxIdle <= 0 {
		validcfg.RedisMaxIdle = defaultRedisMaxIdle
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".RedisMaxIdle",
			"provided": cfg.RedisMaxIdle,
			"default":  validcfg.RedisMaxIdle,
		})
	}

	if cfg.RedisReadTimeout <= 0 {
		validcfg.RedisReadTimeout = defaultRedisReadTimeout
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".RedisReadTimeout",
			"provided": cfg.RedisReadTimeout,
			"default":  validcfg.RedisReadTimeout,
		})
	}

	if cfg.RedisWriteTimeout <= 0 {
		validcfg.RedisWriteTimeout = defaultRedisWriteTimeout
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".RedisWriteTimeout",
			"provided": cfg.RedisWriteTimeout,
			"default":  validcfg.RedisWriteTimeout,
		})
	}

	if cfg.RedisConnectTimeout <= 0 {
		validcfg.RedisConnectTimeout = defaultRedisConnectTimeout
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".RedisConnectTimeout",
			"provided": cfg.RedisConnectTimeout,
			"default":  validcfg.RedisConnectTimeout,
		})
	}

	if cfg.PrometheusReportingInterval <= 0 {
		validcfg.PrometheusReportingInterval = defaultPromReportInterval
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".PrometheusReportingInterval",
			"provided": cfg.PrometheusReportingInterval,
			"default":  validcfg.PrometheusReportingInterval,
		})
	}

	return validcfg
}

// New creates a new SummaryStore backed by redis.
func New(provided Config) (storage.SummaryStore, error) {
	cfg := provided.Validate()

	u, err := parseRedisURL(cfg.RedisBroker)
	if err != nil {
		return nil, err
	}

	ss := &summaryStore{
		cfg:    cfg,
		rb:     newRedisBackend(&cfg, u),
		closed: make(chan struct{}),
	}

	conn := ss.rb.open()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return nil, errors.Wrap(err, "failed to reach redis")
	}

	// Summaries expire inside redis, so the gauge is refreshed from a count
	// rather than tracked on every write.
	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		for {
			select {
			case <-ss.closed:
				return
			case <-time.After(cfg.PrometheusReportingInterval):
				if _, err := ss.count(); err != nil {
					log.Error("storage: failed to count summaries", log.Err(err))
				}
			}
		}
	}()

	return ss, nil
}

type summaryStore struct {
	cfg    Config
	rb     *redisBackend
	closed chan struct{}
	wg     sync.WaitGroup
}

var _ storage.SummaryStore = &summaryStore{}

func (ss *summaryStore) summaryKey(infoHash bittorrent.InfoHash) string {
	return ss.cfg.KeyPrefix + "summary:" + infoHash.String()
}

func (ss *summaryStore) lockKey(infoHash bittorrent.InfoHash) string {
	return ss.cfg.KeyPrefix + "lock:" + infoHash.String()
}

func (ss *summaryStore) panicIfClosed() {
	select {
	case <-ss.closed:
		panic("attempted to interact with stopped redis store")
	default:
	}
}

func (ss *summaryStore) Put(s bittorrent.Summary) (bool, error) {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "put", time.Now())

	value, err := json.Marshal(s)
	if err != nil {
		return false, err
	}

	unlock, err := ss.rb.lock(ss.lockKey(s.InfoHash), ss.cfg.LockExpiry)
	if err != nil {
		return false, err
	}
	defer unlock()

	conn := ss.rb.open()
	defer conn.Close()

	key := ss.summaryKey(s.InfoHash)
	exists, err := redigolib.Bool(conn.Do("EXISTS", key))
	if err != nil {
		return false, err
	}

	args := redigolib.Args{}.Add(key, value)
	if ss.cfg.SummaryLifetime > 0 {
		args = args.Add("PX", ss.cfg.SummaryLifetime.Milliseconds())
	}

	if _, err := conn.Do("SET", args...); err != nil {
		return false, err
	}

	log.Debug("storage: stored summary", s, log.Fields{"created": !exists})
	return !exists, nil
}

func (ss *summaryStore) Get(infoHash bittorrent.InfoHash) (bittorrent.Summary, error) {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "get", time.Now())

	conn := ss.rb.open()
	defer conn.Close()

	var s bittorrent.Summary
	value, err := redigolib.Bytes(conn.Do("GET", ss.summaryKey(infoHash)))
	if errors.Is(err, redigolib.ErrNil) {
		return s, storage.ErrResourceDoesNotExist
	} else if err != nil {
		return s, err
	}

	if err := json.Unmarshal(value, &s); err != nil {
		return s, errors.Wrapf(err, "corrupt summary for %s", infoHash)
	}

	return s, nil
}

func (ss *summaryStore) Delete(infoHash bittorrent.InfoHash) error {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "delete", time.Now())

	conn := ss.rb.open()
	defer conn.Close()

	n, err := redigolib.Int(conn.Do("DEL", ss.summaryKey(infoHash)))
	if err != nil {
		return err
	} else if n == 0 {
		return storage.ErrResourceDoesNotExist
	}

	return nil
}

// Len counts the summary keys with SCAN, so expired summaries are never
// included. The count also updates the summaries gauge.
func (ss *summaryStore) Len() (int, error) {
	ss.panicIfClosed()
	return ss.count()
}

func (ss *summaryStore) count() (int, error) {
	conn := ss.rb.open()
	defer conn.Close()

	var (
		cursor = 0
		n      = 0
	)
	for {
		values, err := redigolib.Values(conn.Do("SCAN", cursor, "MATCH", ss.cfg.KeyPrefix+"summary:*", "COUNT", 1000))
		if err != nil {
			return 0, err
		}

		if len(values) != 2 {
			return 0, errors.Errorf("unexpected SCAN reply of %d elements", len(values))
		}

		if cursor, err = redigolib.Int(values[0], nil); err != nil {
			return 0, err
		}

		keys, err := redigolib.Strings(values[1], nil)
		if err != nil {
			return 0, err
		}
		n += len(keys)

		if cursor == 0 {
			storage.PromSummariesCount.WithLabelValues(Name).Set(float64(n))
			return n, nil
		}
	}
}

func (ss *summaryStore) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		close(ss.closed)
		ss.wg.Wait()
		c.Done(ss.rb.pool.Close())
	}()

	return c.Result()
}

func (ss *summaryStore) LogFields() log.Fields {
	return ss.cfg.LogFields()
}
