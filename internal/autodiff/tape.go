package autodiff

import (
	"github.com/born-ml/probe/internal/autodiff/ops"
	"github.com/born-ml/probe/internal/tensor"
)

// Entry is a recorded operation with its sequence number.
type Entry struct {
	Op  ops.Operation
	Seq int64
}

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Only operations with at least one input that requires grad are recorded.
// Sequence numbers increase monotonically for the lifetime of the tape and
// are not reset by Clear.
type GradientTape struct {
	entries   []Entry
	recording bool
	nextSeq   int64
	tracked   map[*tensor.RawTensor]struct{} // outputs of recorded operations
}

// NewGradientTape creates a new gradient tape in the recording state.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		entries:   make([]Entry, 0, 64),
		recording: true,
		tracked:   make(map[*tensor.RawTensor]struct{}),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record appends op and returns its sequence number.
func (t *GradientTape) Record(op ops.Operation) int64 {
	seq := t.nextSeq
	t.nextSeq++
	t.entries = append(t.entries, Entry{Op: op, Seq: seq})
	t.tracked[op.Output()] = struct{}{}
	return seq
}

// Tracks reports whether raw is the output of a recorded operation.
func (t *GradientTape) Tracks(raw *tensor.RawTensor) bool {
	_, ok := t.tracked[raw]
	return ok
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.entries)
}

// Entries returns the recorded operations in execution order.
func (t *GradientTape) Entries() []Entry {
	return t.entries
}

// Clear removes all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.entries)
	t.entries = t.entries[:0]
	clear(t.tracked)
}

// Backward walks the tape in reverse starting from output with gradient seed.
// Gradients of tensors used more than once are summed. hook, when non-nil,
// is told about every backward function that runs.
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(
	output, seed *tensor.RawTensor,
	backend tensor.Backend,
	hook Hook,
) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: seed}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		outGrad, ok := grads[e.Op.Output()]
		if !ok {
			continue
		}

		name := e.Op.Name()
		if hook != nil {
			hook.BackwardEnter(name, e.Seq)
		}
		inputGrads := e.Op.Backward(outGrad, backend)
		if hook != nil {
			hook.BackwardExit(name, e.Seq)
		}

		for j, in := range e.Op.Inputs() {
			g := inputGrads[j]
			if g == nil {
				continue
			}
			if existing, ok := grads[in]; ok {
				grads[in] = backend.Add(existing, g)
			} else {
				grads[in] = g
			}
		}
	}
	return grads
}
