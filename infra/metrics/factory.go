package metrics

import (
	"github.com/gridmill/gridmill/core/factory"
	coremetrics "github.com/gridmill/gridmill/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// init registers the built-in build sinks.
func init() {
	_ = coremetrics.RegisterBuildSink("nop", func(map[string]any) (coremetrics.BuildSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterBuildSink("prometheus", func(conf map[string]any) (coremetrics.BuildSink, error) {
		var c struct {
			Listen string `json:"listen"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		// Listen is consumed by the HTTP server only; the sink itself
		// records on the default registerer.
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterBuildSink("influx", func(conf map[string]any) (coremetrics.BuildSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
