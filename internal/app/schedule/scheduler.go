package schedule

import (
	"context"
)

// Job is a named periodic task. Spec uses cron syntax.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler interface {
	Register(job Job) error
	Start(ctx context.Context)
	Stop() context.Context
}
