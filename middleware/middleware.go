// Package middleware implements the InspectionLogic interface by executing
// a series of middleware hooks around the decoder.
package middleware

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var (
	driversM sync.RWMutex
	drivers  = make(map[string]Driver)

	// ErrDriverDoesNotExist is the error returned by New when a
	// middleware driver with that name does not exist.
	ErrDriverDoesNotExist = errors.New("middleware driver with that name does not exist")
)

// Driver builds a Hook from its YAML encoded options.
type Driver interface {
	NewHook(options []byte) (Hook, error)
}

// RegisterDriver makes a Driver available under the provided name, which is
// the name used in the prehooks and posthooks sections of the config.
//
// It panics on an empty name, a nil Driver or a name registered twice.
func RegisterDriver(name string, d Driver) {
	switch {
	case name == "":
		panic("middleware: could not register a Driver with an empty name")
	case d == nil:
		panic("middleware: could not register a nil Driver")
	}

	driversM.Lock()
	defer driversM.Unlock()

	if _, dup := drivers[name]; dup {
		panic("middleware: RegisterDriver called twice for " + name)
	}
	drivers[name] = d
}

// Drivers returns the sorted names of every registered Driver.
func Drivers() []string {
	driversM.RLock()
	defer driversM.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// New builds the hook registered under name.
//
// If no such driver exists, returns ErrDriverDoesNotExist.
func New(name string, options []byte) (Hook, error) {
	driversM.RLock()
	d, ok := drivers[name]
	driversM.RUnlock()

	if !ok {
		return nil, ErrDriverDoesNotExist
	}
	return d.NewHook(options)
}

// HookConfig names a hook and carries its driver specific options.
type HookConfig struct {
	Name    string                 `yaml:"name"`
	Options map[string]interface{} `yaml:"options"`
}

// HooksFromHookConfigs builds one Hook per config, in order.
//
// Errors are wrapped with the name of the failing hook; errors.Cause returns
// the driver's error.
func HooksFromHookConfigs(cfgs []HookConfig) ([]Hook, error) {
	hooks := make([]Hook, 0, len(cfgs))
	for _, cfg := range cfgs {
		// Drivers unmarshal their own options.
		options, err := yaml.Marshal(cfg.Options)
		if err != nil {
			return nil, errors.Wrapf(err, "hook %q", cfg.Name)
		}

		h, err := New(cfg.Name, options)
		if err != nil {
			return nil, errors.Wrapf(err, "hook %q", cfg.Name)
		}
		hooks = append(hooks, h)
	}

	return hooks, nil
}
