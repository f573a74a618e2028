// Package memory implements the storage interface for a BitTorrent summary
// store held in memory.
package memory

import (
	"encoding/binary"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/stop"
	"github.com/chihaya/bdecode/storage"
)

// Name is the name by which this summary store is registered.
const Name = "memory"

// Default config constants.
const defaultShardCount = 1024

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

// Config holds the configuration of a memory SummaryStore.
type Config struct {
	ShardCount int `yaml:"shard_count"`
}

// LogFields renders the current config as a set of Logrus fields.
func (cfg Config) LogFields() log.Fields {
	return log.Fields{
		"name":       Name,
		"shardCount": cfg.ShardCount,
	}
}

// Validate sanity checks values set in a config and returns a new config with
// default values replacing anything that is invalid.
//
// This function warns to the logger when a value is changed.
func (cfg Config) Validate() Config {
	validcfg := cfg

	if cfg.ShardCount <= 0 {
		validcfg.ShardCount = defaultShardCount
		log.Warn("falling back to default configuration", log.Fields{
			"name":     Name + ".ShardCount",
			"provided": cfg.ShardCount,
			"default":  validcfg.ShardCount,
		})
	}

	return validcfg
}

// New creates a new SummaryStore backed by memory.
func New(provided Config) (storage.SummaryStore, error) {
	cfg := provided.Validate()

	ss := &summaryStore{
		cfg:    cfg,
		shards: make([]*summaryShard, cfg.ShardCount),
		closed: make(chan struct{}),
	}

	for i := range ss.shards {
		ss.shards[i] = &summaryShard{summaries: make(map[bittorrent.InfoHash]bittorrent.Summary)}
	}

	return ss, nil
}

type summaryShard struct {
	summaries map[bittorrent.InfoHash]bittorrent.Summary
	sync.RWMutex
}

type summaryStore struct {
	cfg    Config
	shards []*summaryShard
	closed chan struct{}
}

var _ storage.SummaryStore = &summaryStore{}

func (ss *summaryStore) shardIndex(infoHash bittorrent.InfoHash) uint32 {
	return binary.BigEndian.Uint32(infoHash[:4]) % uint32(len(ss.shards))
}

func (ss *summaryStore) panicIfClosed() {
	select {
	case <-ss.closed:
		panic("attempted to interact with stopped memory store")
	default:
	}
}

func (ss *summaryStore) Put(s bittorrent.Summary) (bool, error) {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "put", time.Now())

	shard := ss.shards[ss.shardIndex(s.InfoHash)]
	shard.Lock()
	_, exists := shard.summaries[s.InfoHash]
	shard.summaries[s.InfoHash] = s
	shard.Unlock()

	if !exists {
		storage.PromSummariesCount.WithLabelValues(Name).Inc()
	}

	return !exists, nil
}

func (ss *summaryStore) Get(infoHash bittorrent.InfoHash) (bittorrent.Summary, error) {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "get", time.Now())

	shard := ss.shards[ss.shardIndex(infoHash)]
	shard.RLock()
	defer shard.RUnlock()

	s, ok := shard.summaries[infoHash]
	if !ok {
		return bittorrent.Summary{}, storage.ErrResourceDoesNotExist
	}

	return s, nil
}

func (ss *summaryStore) Delete(infoHash bittorrent.InfoHash) error {
	ss.panicIfClosed()
	defer storage.RecordOperation(Name, "delete", time.Now())

	shard := ss.shards[ss.shardIndex(infoHash)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.summaries[infoHash]; !ok {
		return storage.ErrResourceDoesNotExist
	}

	delete(shard.summaries, infoHash)
	storage.PromSummariesCount.WithLabelValues(Name).Dec()
	return nil
}

func (ss *summaryStore) Len() (int, error) {
	ss.panicIfClosed()

	var n int
	for _, shard := range ss.shards {
		shard.RLock()
		n += len(shard.summaries)
		shard.RUnlock()
	}

	return n, nil
}

func (ss *summaryStore) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		close(ss.closed)

		var n int
		for _, shard := range ss.shards {
			shard.Lock()
			n += len(shard.summaries)
			shard.summaries = make(map[bittorrent.InfoHash]bittorrent.Summary)
			shard.Unlock()
		}
		storage.PromSummariesCount.WithLabelValues(Name).Sub(float64(n))

		c.Done()
	}()

	return c.Result()
}

func (ss *summaryStore) LogFields() log.Fields {
	return ss.cfg.LogFields()
}
