package config

import (
	"time"

	"github.com/go-ini/ini"
)

type SchedulerConfig struct {
	MaxRetries int `json:"max_retries"`
	// LivenessThreshold is how stale a RUNNING sub-task's heartbeat may be
	// before the sweeper returns it to PENDING.
	LivenessThreshold time.Duration `json:"liveness_threshold"`
	SweepInterval     time.Duration `json:"sweep_interval"`
	PopTimeout        time.Duration `json:"pop_timeout"`
	WorkerCount       int           `json:"worker_count"`
	TaskTimeout       time.Duration `json:"task_timeout"`
}

func NewDefaultSchedulerConfig(c *ini.Section) SchedulerConfig {
	maxRetries, _ := c.Key("max_retries").Int()
	if maxRetries == 0 {
		maxRetries = 3
	}
	livenessSec, _ := c.Key("liveness_threshold").Int()
	if livenessSec == 0 {
		livenessSec = 300
	}
	sweepSec, _ := c.Key("sweep_interval").Int()
	if sweepSec == 0 {
		sweepSec = 60
	}
	popSec, _ := c.Key("pop_timeout").Int()
	if popSec == 0 {
		popSec = 5
	}
	workers, _ := c.Key("worker_count").Int()
	if workers == 0 {
		workers = 4
	}
	taskSec, _ := c.Key("task_timeout").Int()
	if taskSec == 0 {
		taskSec = 600
	}
	return SchedulerConfig{
		MaxRetries:        maxRetries,
		LivenessThreshold: time.Duration(livenessSec) * time.Second,
		SweepInterval:     time.Duration(sweepSec) * time.Second,
		PopTimeout:        time.Duration(popSec) * time.Second,
		WorkerCount:       workers,
		TaskTimeout:       time.Duration(taskSec) * time.Second,
	}
}
