package config

import (
	"fmt"
	"time"
)

// QueueConfig tunes the background job channel.
//
// Name is the asynq queue every email job is pushed to; the worker consumes
// only that queue, so one channel always maps to exactly one worker.
type QueueConfig struct {
	Name        string        `koanf:"name"`
	Concurrency int           `koanf:"concurrency"`
	MaxRetry    int           `koanf:"max_retry"`
	TaskTimeout time.Duration `koanf:"task_timeout"`

	// ReadyTimeout bounds how long boot waits for queue, worker and event
	// listener to report connected.
	ReadyTimeout time.Duration `koanf:"ready_timeout"`

	// DedupTTL is how long a delivered email is remembered so a duplicate
	// delivery of the same task is skipped.
	DedupTTL time.Duration `koanf:"dedup_ttl"`
}

// DefaultQueueConfig returns the defaults used when no queue block is configured.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Name:         "email",
		Concurrency:  10,
		MaxRetry:     3,
		TaskTimeout:  30 * time.Second,
		ReadyTimeout: 15 * time.Second,
		DedupTTL:     24 * time.Hour,
	}
}

// Validate checks the queue block and fills zero values with defaults.
func (q *QueueConfig) Validate() error {
	defaults := DefaultQueueConfig()

	if q.Name == "" {
		q.Name = defaults.Name
	}
	if q.Concurrency <= 0 {
		q.Concurrency = defaults.Concurrency
	}
	if q.MaxRetry < 0 {
		return fmt.Errorf("max_retry must be non-negative, got %d", q.MaxRetry)
	}
	if q.TaskTimeout <= 0 {
		q.TaskTimeout = defaults.TaskTimeout
	}
	if q.ReadyTimeout <= 0 {
		q.ReadyTimeout = defaults.ReadyTimeout
	}
	if q.DedupTTL <= 0 {
		q.DedupTTL = defaults.DedupTTL
	}

	return nil
}
