package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrJobRunning indicates a job of the same kind is already active
	ErrJobRunning = errors.New("job of this kind already running")

	// ErrNoSuchJob indicates the handle is not the active job of its kind
	ErrNoSuchJob = errors.New("no such job")

	// ErrUnknownKind indicates an unrecognised job kind
	ErrUnknownKind = errors.New("unknown job kind")
)

// Kind names a class of bulk operation. One job per kind may run at a time.
type Kind string

// Job kinds
const (
	KindSync          Kind = "sync"
	KindImport        Kind = "import"
	KindConnect       Kind = "connect"
	KindRemoveDevice  Kind = "remove-device"
	KindRemoveGateway Kind = "remove-gateway"
	KindPurgeHubLinks Kind = "purge-hub-links"
)

// Kinds lists every job kind in display order.
var Kinds = []Kind{KindSync, KindImport, KindConnect, KindRemoveDevice, KindRemoveGateway, KindPurgeHubLinks}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownKind
}

// State of a job. There is no aborting state: cancellation is advisory and
// lands at the next unit boundary.
type State string

// Job states
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Unit is one step of a batch, usually one device. Units run in order and
// never concurrently.
type Unit struct {
	Name string
	Run  func(ctx context.Context) error
}

// Plan describes a bulk operation.
type Plan struct {
	Kind  Kind
	Units []Unit

	// Finish runs once after the units, cancelled or not. An error marks the
	// whole batch as failed.
	Finish func(ctx context.Context, cancelled bool) error
}

// DeviceFailure records a unit that failed without stopping the batch.
type DeviceFailure struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// Result is the outcome of a finished job. Success is true when the batch
// iterated to its end, even if some units failed; it is false when the job
// was cancelled or could not finish.
type Result struct {
	JobID       string          `json:"job_id"`
	Kind        Kind            `json:"kind"`
	State       State           `json:"state"`
	Success     bool            `json:"success"`
	Cancelled   bool            `json:"cancelled"`
	Processed   int             `json:"processed"`
	Total       int             `json:"total"`
	Failures    []DeviceFailure `json:"failures,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Job is the handle of a scheduled bulk operation.
type Job struct {
	id        string
	kind      Kind
	total     int
	startedAt time.Time

	cancelRequested atomic.Bool
	processed       atomic.Int64

	// sealed is set under the scheduler lock once no unit remains to run;
	// cancellation is refused from then on.
	sealed bool

	mu     sync.RWMutex
	state  State
	result Result
	done   chan struct{}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Kind returns the job kind.
func (j *Job) Kind() Kind { return j.kind }

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns how many units have finished and the total.
func (j *Job) Progress() (processed, total int) {
	return int(j.processed.Load()), j.total
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (j *Job) Result() Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		return j.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Snapshot describes a job for status queries.
type Snapshot struct {
	JobID     string    `json:"job_id"`
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot returns the current status.
func (j *Job) Snapshot() Snapshot {
	processed, total := j.Progress()
	return Snapshot{
		JobID:     j.id,
		Kind:      j.kind,
		State:     j.State(),
		Processed: processed,
		Total:     total,
		StartedAt: j.startedAt,
	}
}
