package config

// DQRulesConfig mirrors dq_rules.yaml.
type DQRulesConfig struct {
	Pipeline PipelineRules `yaml:"pipeline"`
	Events   EventRules    `yaml:"events"`
}

// PipelineRules decide the publish gate. fail_on_error defaults to true,
// fail_on_warning to false.
type PipelineRules struct {
	FailOnError   *bool `yaml:"fail_on_error"`
	FailOnWarning bool  `yaml:"fail_on_warning"`
}

func (p PipelineRules) ShouldFailOnError() bool {
	return p.FailOnError == nil || *p.FailOnError
}

// EventRules holds event-specific thresholds.
type EventRules struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

// MaxEventAgeDays returns the stale-event warning threshold (default 30).
func (c DQRulesConfig) MaxEventAgeDays() int {
	if c.Events.MaxAgeDays > 0 {
		return c.Events.MaxAgeDays
	}
	return 30
}
