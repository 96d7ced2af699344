package kvs

// Status classifies a run.
type Status int

const (
	StatusSucceeded Status = iota
	StatusPartiallySucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusPartiallySucceeded:
		return "partially succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one run.
type Outcome struct {
	Status           Status
	AttemptedDeletes int
	AttemptedWrites  int
	FailedDeletes    []string
	FailedWrites     []string
}

// Summarize classifies a run from its attempt counts and failure messages.
// A run where nothing failed succeeded; a run where every attempted
// operation failed failed; anything else partially succeeded.
func Summarize(attemptedDeletes int, failedDeletes []string, attemptedWrites int, failedWrites []string) *Outcome {
	o := &Outcome{
		AttemptedDeletes: attemptedDeletes,
		AttemptedWrites:  attemptedWrites,
		FailedDeletes:    failedDeletes,
		FailedWrites:     failedWrites,
	}

	switch {
	case len(failedDeletes) == 0 && len(failedWrites) == 0:
		o.Status = StatusSucceeded
	case len(failedDeletes) == attemptedDeletes && len(failedWrites) == attemptedWrites:
		o.Status = StatusFailed
	default:
		o.Status = StatusPartiallySucceeded
	}
	return o
}

// Succeeded reports whether every operation succeeded.
func (o *Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// Summary is the one-line classification for a non-successful run.
func (o *Outcome) Summary() string {
	switch o.Status {
	case StatusFailed:
		return "Configuration sync failed."
	case StatusPartiallySucceeded:
		return "Configuration sync partially succeeded."
	default:
		return ""
	}
}

// Messages returns every failure message, deletes first.
func (o *Outcome) Messages() []string {
	msgs := make([]string, 0, len(o.FailedDeletes)+len(o.FailedWrites))
	msgs = append(msgs, o.FailedDeletes...)
	return append(msgs, o.FailedWrites...)
}

// Err returns a *SyncError unless the run fully succeeded.
func (o *Outcome) Err() error {
	if o.Succeeded() {
		return nil
	}
	return &SyncError{Status: o.Status, Summary: o.Summary(), Messages: o.Messages()}
}
