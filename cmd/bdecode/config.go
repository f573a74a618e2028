package main

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/chihaya/bdecode/bencode"
	httpfrontend "github.com/chihaya/bdecode/frontend/http"
	"github.com/chihaya/bdecode/middleware"
	"github.com/chihaya/bdecode/pkg/log"

	// Imports to register middleware drivers.
	_ "github.com/chihaya/bdecode/middleware/torrentapproval"

	// Imports to register storage drivers.
	_ "github.com/chihaya/bdecode/storage/memory"
	_ "github.com/chihaya/bdecode/storage/redis"
)

type storageConfig struct {
	Name   string      `yaml:"name"`
	Config interface{} `yaml:"config"`
}

// Config represents the configuration used for executing bdecode.
type Config struct {
	Decoder     bencode.Config          `yaml:"decoder"`
	Log         log.Config              `yaml:"log"`
	MetricsAddr string                  `yaml:"metrics_addr"`
	HTTPConfig  httpfrontend.Config     `yaml:"http"`
	Storage     *storageConfig          `yaml:"storage"`
	PreHooks    []middleware.HookConfig `yaml:"prehooks"`
	PostHooks   []middleware.HookConfig `yaml:"posthooks"`
}

// PreHookNames returns only the names of the configured middleware.
func (cfg Config) PreHookNames() (names []string) {
	for _, hook := range cfg.PreHooks {
		names = append(names, hook.Name)
	}

	return
}

// PostHookNames returns only the names of the configured middleware.
func (cfg Config) PostHookNames() (names []string) {
	for _, hook := range cfg.PostHooks {
		names = append(names, hook.Name)
	}

	return
}

// ConfigFile represents a namespaced YAML configuration file.
type ConfigFile struct {
	Bdecode Config `yaml:"bdecode"`
}

// ParseConfigFile returns a new ConfigFile given the path to a YAML
// configuration file.
//
// It supports relative and absolute paths and environment variables.
func ParseConfigFile(path string) (*ConfigFile, error) {
	if path == "" {
		return nil, errors.New("no config path specified")
	}

	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	contents, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var cfgFile ConfigFile
	err = yaml.Unmarshal(contents, &cfgFile)
	if err != nil {
		return nil, err
	}

	return &cfgFile, nil
}
