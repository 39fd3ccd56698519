package task

import "github.com/aretw0/tasktree/pkg/trace"

// Status is the outcome tag of a node invocation.
type Status int

const (
	StatusOK Status = iota
	StatusFail
)

// String returns the wire form of the status.
func (s Status) String() string {
	if s == StatusOK {
		return trace.StatusOK
	}
	return trace.StatusFail
}

// Result is the tagged outcome threaded through every node invocation. Data
// is opaque payload carried for downstream consumption; the status alone
// drives composite control flow.
type Result struct {
	Status Status
	Data   any
}

// OK builds a successful Result.
func OK(data any) Result { return Result{Status: StatusOK, Data: data} }

// Fail builds a failed Result.
func Fail(data any) Result { return Result{Status: StatusFail, Data: data} }

// IsOK reports whether the result is OK.
func (r Result) IsOK() bool { return r.Status == StatusOK }

// IsFail reports whether the result is FAIL.
func (r Result) IsFail() bool { return r.Status == StatusFail }

// trace converts the result to its trace form, sanitizing the payload so the
// trace tree always serializes.
func (r Result) trace() trace.Result {
	return trace.Result{Status: r.Status.String(), Data: sanitizePayload(r.Data)}
}
