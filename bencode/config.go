package bencode

import "github.com/chihaya/bdecode/pkg/log"

// Config represents the strictness options of a Decoder.
//
// The zero value is the default configuration: negative integers are
// accepted, trailing bytes are rejected and there are no limits.
type Config struct {
	RejectNegativeIntegers bool `yaml:"reject_negative_integers"`
	AllowTrailingBytes     bool `yaml:"allow_trailing_bytes"`
	MaxDepth               int  `yaml:"max_depth"`
	MaxInputSize           int  `yaml:"max_input_size"`
}

// DefaultConfig is the Config used by Decode.
var DefaultConfig = Config{}

// LogFields renders the current config as a set of Logrus fields.
func (cfg Config) LogFields() log.Fields {
	return log.Fields{
		"rejectNegativeIntegers": cfg.RejectNegativeIntegers,
		"allowTrailingBytes":     cfg.AllowTrailingBytes,
		"maxDepth":               cfg.MaxDepth,
		"maxInputSize":           cfg.MaxInputSize,
	}
}

// Validate sanity checks values set in a config and returns a new config with
// default values replacing anything that is invalid.
//
// This function warns to the logger when a value is changed.
func (cfg Config) Validate() Config {
	validcfg := cfg

	if cfg.MaxDepth < 0 {
		validcfg.MaxDepth = 0
		log.Warn("falling back to default configuration", log.Fields{
			"name":     "bencode.MaxDepth",
			"provided": cfg.MaxDepth,
			"default":  validcfg.MaxDepth,
		})
	}

	if cfg.MaxInputSize < 0 {
		validcfg.MaxInputSize = 0
		log.Warn("falling back to default configuration", log.Fields{
			"name":     "bencode.MaxInputSize",
			"provided": cfg.MaxInputSize,
			"default":  validcfg.MaxInputSize,
		})
	}

	return validcfg
}
