package cron

import "context"

// Job is one recurring lifecycle task, such as the reservation sweep or the
// refund retry pass. Name labels its metrics and log lines.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs the cron worker ticks through each interval.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs. Nil entries
// are skipped so callers can pass conditionally-built jobs directly.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		registry.jobs = append(registry.jobs, job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs in registration order, which is
// the order the worker runs them.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
