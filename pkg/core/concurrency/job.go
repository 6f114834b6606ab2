package concurrency

// Job is a unit of work handed to a Pool.
// It takes no arguments and returns nothing; everything it needs must be
// captured by value, since it runs on a different goroutine than its submitter.
type Job func()

// NamedJob wraps a Job with a human-readable name (for logging/debugging)
type NamedJob struct {
	name string
	job  Job
}

// NewNamedJob creates a new NamedJob
func NewNamedJob(name string, job Job) *NamedJob {
	return &NamedJob{
		name: name,
		job:  job,
	}
}

// Name returns the job name
func (nj *NamedJob) Name() string {
	return nj.name
}

// Job returns the wrapped job, suitable for Pool.Submit
func (nj *NamedJob) Job() Job {
	if nj == nil || nj.job == nil {
		return nil
	}
	return nj.job
}
