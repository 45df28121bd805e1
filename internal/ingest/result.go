package ingest

import "fmt"

// Result tracks counts and errors across a batch of task invocations.
type Result struct {
	TasksRun      int
	RecordsLoaded int
	NoData        int
	Skipped       int
	Errors        []string
}

// Observe folds one task outcome into the result.
func (r *Result) Observe(name string, out Outcome) {
	r.TasksRun++
	switch out.Status {
	case StatusLoaded:
		r.RecordsLoaded += out.Records
	case StatusNoData:
		r.NoData++
	case StatusSkipped:
		r.Skipped++
	}
	if out.Err != nil {
		r.AddErrorf("%s: %v", name, out.Err)
	}
}

// AddError records an error message.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddErrorf records a formatted error message.
func (r *Result) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the batch.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"tasks=%d records=%d no_data=%d skipped=%d errors=%d",
		r.TasksRun, r.RecordsLoaded, r.NoData, r.Skipped, len(r.Errors),
	)
}
