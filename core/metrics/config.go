package metrics

import "github.com/gridmill/gridmill/core/factory"

// Config defines settings for build metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}
