package ports

import "time"

type Policy struct {
	Duration         float64       `yaml:"duration" validate:"gt=0"`
	SampleRate       float64       `yaml:"sample_rate" validate:"gt=0,lte=1"`
	Seed             int64         `yaml:"seed"`
	StepLength       float64       `yaml:"step_length" validate:"gte=0.001"`     // both backends tick in ms
	SamplingInterval float64       `yaml:"sampling_interval" validate:"gte=0.1"` // snapshot files are named to 0.1 s
	ProgressInterval float64       `yaml:"progress_interval" validate:"gte=0"`
	StepDelay        time.Duration `yaml:"step_delay" validate:"gte=0"`
	Fast             bool          `yaml:"fast"` // no step delay

	NormalType    string `yaml:"normal_type" validate:"required"`
	MaliciousType string `yaml:"malicious_type" validate:"required"`
	FallbackRoute string `yaml:"fallback_route"`
	Depart        string `yaml:"depart"`       // "now", "triggered", or a time
	DepartSpeed   string `yaml:"depart_speed"` // "random", "max", "desired", or a value
}
