package cron

import (
	"context"
	"slices"
	"time"
)

// Job is one polling sweep. Run is called once per Interval on the replica
// that holds the job's lock.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Registry is the ordered set of enabled jobs. Names are lock keys, so a
// second job with a taken name is dropped.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register ignores nil jobs, jobs with a non-positive interval and duplicate names.
func (r *Registry) Register(job Job) {
	if job == nil || job.Interval() <= 0 {
		return
	}
	taken := slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == job.Name() })
	if !taken {
		r.jobs = append(r.jobs, job)
	}
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
