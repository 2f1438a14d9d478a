package mqtt

import (
	"encoding/json"

	"github.com/gridmill/gridmill/core/factory"
	coremetrics "github.com/gridmill/gridmill/core/metrics"
)

// NotifySink publishes build outcomes to the control-room broker. Topics are
// <prefix>/task/<rule>, <prefix>/run and <prefix>/fallback.
type NotifySink struct {
	pub    Publisher
	prefix string
}

// NewNotifySink wraps a publisher. An empty prefix defaults to "gridmill".
func NewNotifySink(pub Publisher, prefix string) *NotifySink {
	if prefix == "" {
		prefix = "gridmill"
	}
	return &NotifySink{pub: pub, prefix: prefix}
}

type taskMessage struct {
	RunID    string  `json:"run_id"`
	TaskID   string  `json:"task_id"`
	Rule     string  `json:"rule"`
	Day      string  `json:"day,omitempty"`
	Status   string  `json:"status"`
	Cached   bool    `json:"cached"`
	Seconds  float64 `json:"seconds"`
	MemoryMB int     `json:"memory_mb"`
	Error    string  `json:"error,omitempty"`
}

// RecordTaskOutcome publishes one settled task.
func (s *NotifySink) RecordTaskOutcome(res coremetrics.TaskOutcome) error {
	payload, err := json.Marshal(taskMessage{
		RunID:    res.RunID,
		TaskID:   res.TaskID,
		Rule:     res.Rule,
		Day:      res.Day,
		Status:   res.Status,
		Cached:   res.Cached,
		Seconds:  res.Duration.Seconds(),
		MemoryMB: res.MemoryMB,
		Error:    res.Error,
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(s.prefix+"/task/"+res.Rule, payload)
}

type runMessage struct {
	RunID     string   `json:"run_id"`
	Targets   []string `json:"targets"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Blocked   int      `json:"blocked"`
	Cached    int      `json:"cached"`
	Seconds   float64  `json:"seconds"`
}

// RecordRunSummary publishes the end-of-run verdict.
func (s *NotifySink) RecordRunSummary(sum coremetrics.RunSummary) error {
	payload, err := json.Marshal(runMessage{
		RunID:     sum.RunID,
		Targets:   sum.Targets,
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Blocked:   sum.Blocked,
		Cached:    sum.Cached,
		Seconds:   sum.Duration.Seconds(),
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(s.prefix+"/run", payload)
}

type fallbackMessage struct {
	RunID       string `json:"run_id"`
	Rule        string `json:"rule"`
	Wildcard    string `json:"wildcard"`
	Requested   string `json:"requested"`
	Substituted string `json:"substituted"`
}

// RecordConstraintFallback publishes a vintage substitution so operators see
// stale constraint data being served.
func (s *NotifySink) RecordConstraintFallback(ev coremetrics.ConstraintFallback) error {
	payload, err := json.Marshal(fallbackMessage{
		RunID:       ev.RunID,
		Rule:        ev.Rule,
		Wildcard:    ev.Wildcard,
		Requested:   ev.Requested,
		Substituted: ev.Substituted,
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(s.prefix+"/fallback", payload)
}

func init() {
	_ = coremetrics.RegisterBuildSink("mqtt", func(conf map[string]any) (coremetrics.BuildSink, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		pub, err := NewPahoPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return NewNotifySink(pub, cfg.TopicPrefix), nil
	})
}
