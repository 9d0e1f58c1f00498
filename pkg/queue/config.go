package queue

import "video_pipeline_service/pkg/config"

// OptionsFromConfig map the yaml queue block, unset values fall back to New's defaults
func OptionsFromConfig(c config.QueueConfig) Options {
	return Options{
		Name:        c.Name,
		Workers:     c.Workers,
		MaxAttempts: c.MaxAttempts,
		Backoff: Backoff{
			Base:   c.BackoffBase,
			Factor: c.BackoffFactor,
			Max:    c.BackoffMax,
		},
		LeaseTimeout: c.LeaseTimeout,
		PollInterval: c.PollInterval,
	}
}
