package metrics

import "github.com/gridmill/gridmill/core/factory"

var sinkRegistry = factory.NewRegistry[BuildSink]()

// RegisterBuildSink adds a build sink factory identified by name.
func RegisterBuildSink(name string, f factory.Factory[BuildSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewBuildSink creates a BuildSink from the provided configuration.
func NewBuildSink(cfgs []factory.ModuleConfig) (BuildSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]BuildSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}
