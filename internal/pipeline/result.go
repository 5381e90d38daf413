package pipeline

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// StepResult is the outcome of a leaf step or a concurrent group. Data is
// normally a handle to a backend artifact; for a group it is a
// []*StepResult in declaration order.
type StepResult struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func Success(data any) *StepResult {
	return &StepResult{Status: StatusSuccess, Data: data}
}

func Failure(data any) *StepResult {
	return &StepResult{Status: StatusFailure, Data: data}
}

func (r *StepResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

func (r *StepResult) Failed() bool {
	return r != nil && r.Status == StatusFailure
}

// Members returns the member results when r was produced by a concurrent
// group.
func (r *StepResult) Members() ([]*StepResult, bool) {
	if r == nil {
		return nil, false
	}
	members, ok := r.Data.([]*StepResult)
	return members, ok
}

// GroupResult wraps member results; the group fails when any member failed.
func GroupResult(members []*StepResult) *StepResult {
	status := StatusSuccess
	for _, m := range members {
		if m.Failed() {
			status = StatusFailure
			break
		}
	}
	return &StepResult{Status: status, Data: members}
}
