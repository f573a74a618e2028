// Package storage defines the interface for persisting the summaries of
// parsed metainfo files, along with a registry of the drivers implementing
// it.
package storage

import (
	"errors"
	"sync"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/stop"
)

var (
	driversM sync.RWMutex
	drivers  = make(map[string]Driver)
)

// Driver is the interface used to initialize a new type of SummaryStore.
type Driver interface {
	NewSummaryStore(cfg interface{}) (SummaryStore, error)
}

// ErrResourceDoesNotExist is the error returned by Get and Delete when the
// requested summary is not stored.
var ErrResourceDoesNotExist = bittorrent.ClientError("resource does not exist")

// ErrDriverDoesNotExist is the error returned by NewSummaryStore when a
// summary store driver with that name does not exist.
var ErrDriverDoesNotExist = errors.New("summary store driver with that name does not exist")

// SummaryStore is an interface that abstracts storing the summaries of
// parsed torrents such that it can be implemented for various data stores.
type SummaryStore interface {
	// Put stores s under its InfoHash, replacing any previous summary.
	//
	// It returns true when no summary was stored for the InfoHash before.
	Put(s bittorrent.Summary) (created bool, err error)

	// Get returns the summary stored under infoHash.
	//
	// If no such summary exists, ErrResourceDoesNotExist is returned.
	Get(infoHash bittorrent.InfoHash) (bittorrent.Summary, error)

	// Delete removes the summary stored under infoHash.
	//
	// If no such summary exists, ErrResourceDoesNotExist is returned.
	Delete(infoHash bittorrent.InfoHash) error

	// Len returns the number of stored summaries.
	Len() (int, error)

	// Stopper is an interface that expects a Stop method to stop the
	// SummaryStore.
	// For more details see the documentation in the stop package.
	stop.Stopper

	log.Fielder
}

// RegisterDriver makes a Driver available by the provided name.
//
// If called twice with the same name, the name is blank, or if the provided
// Driver is nil, this function panics.
func RegisterDriver(name string, d Driver) {
	if name == "" {
		panic("storage: could not register a Driver with an empty name")
	}
	if d == nil {
		panic("storage: could not register a nil Driver")
	}

	driversM.Lock()
	defer driversM.Unlock()

	if _, dup := drivers[name]; dup {
		panic("storage: RegisterDriver called twice for " + name)
	}

	drivers[name] = d
}

// NewSummaryStore attempts to initialize a new SummaryStore with given a
// name from the list of registered Drivers.
//
// If a driver does not exist, returns ErrDriverDoesNotExist.
func NewSummaryStore(name string, cfg interface{}) (SummaryStore, error) {
	driversM.RLock()
	defer driversM.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, ErrDriverDoesNotExist
	}

	return d.NewSummaryStore(cfg)
}
