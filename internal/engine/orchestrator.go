package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gridsum-dev/gridsum/internal/matrix"
)

// state identifies the orchestrator's position in its execution
// sequence. It is carried as the Op field of engine errors and in logs.
type state int

const (
	stateIdle state = iota
	stateValidating
	stateUploading
	stateConfiguring
	stateLaunching
	stateAwaitingCompletion
	stateDownloading
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateValidating:
		return "Validating"
	case stateUploading:
		return "Uploading"
	case stateConfiguring:
		return "Configuring"
	case stateLaunching:
		return "Launching"
	case stateAwaitingCompletion:
		return "AwaitingCompletion"
	case stateDownloading:
		return "Downloading"
	case stateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Options is the engine's externally supplied configuration.
type Options struct {
	// ThreadsPerGroup is the fixed execution-group shape. Zero value
	// means DefaultThreadsPerGroup.
	ThreadsPerGroup Dim2
	// SyncTimeout bounds the wait at the synchronization barrier.
	// Zero means no deadline.
	SyncTimeout time.Duration
}

// Orchestrator sequences allocation, transfer, launch, synchronization,
// and result retrieval into one atomic operation per request. A single
// Orchestrator serves concurrent requests; each invocation owns its own
// buffers.
type Orchestrator struct {
	backend  Backend
	fallback Backend // optional host backend for the degraded-mode path
	opts     Options
	logger   *log.Logger
}

// NewOrchestrator creates an orchestrator driving backend. fallback may
// be nil, in which case accelerator failures surface to the caller
// instead of being retried on the host.
func NewOrchestrator(backend, fallback Backend, opts Options, logger *log.Logger) *Orchestrator {
	if opts.ThreadsPerGroup == (Dim2{}) {
		opts.ThreadsPerGroup = DefaultThreadsPerGroup
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{backend: backend, fallback: fallback, opts: opts, logger: logger}
}

// Backend returns the primary backend.
func (o *Orchestrator) Backend() Backend { return o.backend }

// Execute adds two equally shaped matrices and returns the sum together
// with the elapsed wall-clock time and the device tag. The elapsed time
// spans validation through download, transfer and synchronization
// overhead included. On accelerator failure the addition is re-executed
// on the fallback backend (when configured) and tagged "CPU".
func (o *Orchestrator) Execute(ctx context.Context, a, b *matrix.Matrix) (*ExecutionResult, error) {
	start := time.Now()

	// Validating: fail before any device resource is touched.
	if !a.SameShape(b) {
		return nil, NewShapeMismatchError(stateValidating.String(),
			fmt.Sprintf("matrix shapes do not match: %s vs %s", a.ShapeString(), b.ShapeString()))
	}

	// Empty workload: nothing to upload or launch.
	if a.NumElements() == 0 {
		out, err := matrix.New(a.Rows(), a.Cols())
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Matrix: out, Elapsed: time.Since(start), Device: o.backend.Tag()}, nil
	}

	out, err := o.run(ctx, o.backend, a, b)
	if err != nil && o.fallback != nil && fallbackEligible(err) {
		o.logger.Printf("engine: accelerator path failed, degrading to host execution: %v", err)
		out, err = o.run(ctx, o.fallback, a, b)
		if err == nil {
			out.Elapsed = time.Since(start)
			return out, nil
		}
	}
	if err != nil {
		return nil, err
	}

	out.Elapsed = time.Since(start)
	return out, nil
}

// run drives one backend through the upload/configure/launch/sync/
// download sequence. Buffers acquired along the way are released on
// every exit path.
func (o *Orchestrator) run(ctx context.Context, be Backend, a, b *matrix.Matrix) (*ExecutionResult, error) {
	rows, cols := a.Rows(), a.Cols()

	// Uploading.
	da, err := be.Upload(a)
	if err != nil {
		return nil, err
	}
	defer da.Release()

	db, err := be.Upload(b)
	if err != nil {
		return nil, err
	}
	defer db.Release()

	dc, err := be.AllocateResult(rows, cols)
	if err != nil {
		return nil, err
	}
	defer dc.Release()

	// Configuring.
	cfg := Configure(rows, cols, o.opts.ThreadsPerGroup)

	// Launching: asynchronous submission, no spinning here.
	done, err := be.LaunchAdd(da, db, dc, rows, cols, cfg)
	if err != nil {
		return nil, err
	}

	// AwaitingCompletion: the single blocking point. Downloading before
	// the barrier would read undefined memory.
	waitCtx := ctx
	if o.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, o.opts.SyncTimeout)
		defer cancel()
	}
	if err := done.Wait(waitCtx); err != nil {
		if IsKind(err, KindTimeout) {
			return nil, err
		}
		return nil, NewTimeoutError(stateAwaitingCompletion.String(),
			"synchronization wait did not complete", err)
	}

	// Downloading.
	out, err := be.Download(dc, rows, cols)
	if err != nil {
		return nil, err
	}

	// Done. Elapsed is stamped by the caller so that a fallback retry is
	// included in the reported duration.
	return &ExecutionResult{Matrix: out, Device: be.Tag()}, nil
}

// fallbackEligible reports whether an accelerator failure may be
// absorbed by re-executing on the host. Validation errors never are.
func fallbackEligible(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindAllocation, KindTransfer, KindLaunch, KindTimeout, KindUnavailable:
		return true
	default:
		return false
	}
}
