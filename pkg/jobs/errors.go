package jobs

type JobError string

func (e JobError) Error() string { return string(e) }

const (
	ErrInvalidSchedule JobError = "invalid cron expression"
	ErrDuplicateJob    JobError = "job already registered"
	ErrUnknownJob      JobError = "unknown job"
	ErrNoJobs          JobError = "no jobs registered"
	ErrAlreadyRunning  JobError = "job is already running"
)
