// Package http implements an inspection frontend for bencoded documents via
// a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/chihaya/bdecode/bittorrent"
	"github.com/chihaya/bdecode/frontend"
	"github.com/chihaya/bdecode/pkg/log"
	"github.com/chihaya/bdecode/pkg/stop"
)

// Config represents all of the configurable options for an HTTP inspection
// Frontend.
type Config struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	EnableKeepAlive bool          `yaml:"enable_keepalive"`
	MaxBodySize     int64         `yaml:"max_body_size"`
}

// LogFields renders the current config as a set of Logrus fields.
func (cfg Config) LogFields() log.Fields {
	return log.Fields{
		"addr":            cfg.Addr,
		"readTimeout":     cfg.ReadTimeout,
		"writeTimeout":    cfg.WriteTimeout,
		"idleTimeout":     cfg.IdleTimeout,
		"enableKeepAlive": cfg.EnableKeepAlive,
		"maxBodySize":     cfg.MaxBodySize,
	}
}

// Default config constants.
const (
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 2 * time.Second
	defaultIdleTimeout  = 30 * time.Second
	defaultMaxBodySize  = 10 << 20
)

// Validate sanity checks values set in a config and returns a new config with
// default values replacing anything that is invalid.
//
// This function warns to the logger when a value is changed.
func (cfg Config) Validate() Config {
	validcfg := cfg

	if cfg.ReadTimeout <= 0 {
		validcfg.ReadTimeout = defaultReadTimeout
		log.Warn("falling back to default configuration", log.Fields{
			"name":     "http.ReadTimeout",
			"provided": cfg.ReadTimeout,
			"default":  validcfg.ReadTimeout,
		})
	}

	if cfg.WriteTimeout <= 0 {
		validcfg.WriteTimeout = defaultWriteTimeout
		log.Warn("falling back to default configuration", log.Fields{
			"name":     "http.WriteTimeout",
			"provided": cfg.WriteTimeout,
			"default":  validcfg.WriteTimeout,
		})
	}

	if cfg.IdleTimeout <= 0 {
		validcfg.IdleTimeout = defaultIdleTimeout

		if cfg.EnableKeepAlive {
			// If keepalive is disabled, this configuration isn't used anyway.
			log.Warn("falling back to default configuration", log.Fields{
				"name":     "http.IdleTimeout",
				"provided": cfg.IdleTimeout,
				"default":  validcfg.IdleTimeout,
			})
		}
	}

	if cfg.MaxBodySize <= 0 {
		validcfg.MaxBodySize = defaultMaxBodySize
		log.Warn("falling back to default configuration", log.Fields{
			"name":     "http.MaxBodySize",
			"provided": cfg.MaxBodySize,
			"default":  validcfg.MaxBodySize,
		})
	}

	return validcfg
}

// Frontend represents the state of an HTTP inspection frontend.
type Frontend struct {
	srv   *http.Server
	logic frontend.InspectionLogic
	Config
}

// NewFrontend creates a new instance of an HTTP Frontend that asynchronously
// serves requests.
func NewFrontend(logic frontend.InspectionLogic, provided Config) (*Frontend, error) {
	cfg := provided.Validate()

	f := &Frontend{
		logic:  logic,
		Config: cfg,
	}

	if cfg.Addr == "" {
		return nil, errors.New("must specify addr")
	}

	ln, err := net.Listen("tcp", f.Addr)
	if err != nil {
		return nil, err
	}

	f.srv = &http.Server{
		Addr:         f.Addr,
		Handler:      f.handler(),
		ReadTimeout:  f.ReadTimeout,
		WriteTimeout: f.WriteTimeout,
		IdleTimeout:  f.IdleTimeout,
	}
	f.srv.SetKeepAlivesEnabled(f.EnableKeepAlive)

	go func() {
		if err := f.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed while serving http", log.Err(err))
		}
	}()

	return f, nil
}

// Stop provides a thread-safe way to shutdown a currently running Frontend.
func (f *Frontend) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		c.Done(f.srv.Shutdown(context.Background()))
	}()

	return c.Result()
}

func (f *Frontend) handler() http.Handler {
	router := httprouter.New()
	router.POST("/decode", f.decodeRoute)
	router.POST("/metainfo", f.metainfoRoute)
	router.GET("/metainfo/:infohash", f.lookupRoute)
	router.DELETE("/metainfo/:infohash", f.forgetRoute)
	router.POST("/announce-response", f.announceResponseRoute)
	router.POST("/scrape-response", f.scrapeResponseRoute)
	return router
}

// readBody reads the request body, failing with ErrBodyTooLarge past
// MaxBodySize bytes.
func (f *Frontend) readBody(r *http.Request) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r.Body, f.MaxBodySize+1))
	if err != nil {
		return nil, err
	}

	if int64(len(buf)) > f.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return buf, nil
}

// decodeRoute decodes an arbitrary document and writes it back as JSON.
func (f *Frontend) decodeRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("decode", err, time.Since(start)) }()

	buf, err := f.readBody(r)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	v, err := f.logic.HandleDecode(r.Context(), buf)
	if err != nil {
		recordDecodeError(err)
		_ = WriteError(w, err)
		return
	}

	err = WriteValue(w, v)
}

// metainfoRoute parses and stores a metainfo file.
func (f *Frontend) metainfoRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("metainfo", err, time.Since(start)) }()

	buf, err := f.readBody(r)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	// The request context ends with the handler, but the post-hooks run
	// after it.
	ctx, mi, created, err := f.logic.HandleMetainfo(context.Background(), buf)
	if err != nil {
		recordDecodeError(err)
		_ = WriteError(w, err)
		return
	}

	if err = WriteSummary(w, mi.Summary(), created); err != nil {
		return
	}

	go f.logic.AfterMetainfo(ctx, mi)
}

// lookupRoute returns a stored summary.
func (f *Frontend) lookupRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("lookup", err, time.Since(start)) }()

	ih, err := bittorrent.InfoHashFromHexString(ps.ByName("infohash"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	s, err := f.logic.HandleLookup(r.Context(), ih)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	err = WriteSummary(w, s, false)
}

// forgetRoute removes a stored summary.
func (f *Frontend) forgetRoute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("forget", err, time.Since(start)) }()

	ih, err := bittorrent.InfoHashFromHexString(ps.ByName("infohash"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	if err = f.logic.HandleForget(r.Context(), ih); err != nil {
		_ = WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// announceResponseRoute parses a tracker announce response.
func (f *Frontend) announceResponseRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("announce-response", err, time.Since(start)) }()

	buf, err := f.readBody(r)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	resp, err := f.logic.HandleAnnounceResponse(r.Context(), buf)
	if err != nil {
		recordDecodeError(err)
		_ = WriteError(w, err)
		return
	}

	err = WriteAnnounceResponse(w, resp)
}

// scrapeResponseRoute parses a tracker scrape response.
func (f *Frontend) scrapeResponseRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("scrape-response", err, time.Since(start)) }()

	buf, err := f.readBody(r)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	scrapes, err := f.logic.HandleScrapeResponse(r.Context(), buf)
	if err != nil {
		recordDecodeError(err)
		_ = WriteError(w, err)
		return
	}

	err = WriteScrapeResponse(w, scrapes)
}
