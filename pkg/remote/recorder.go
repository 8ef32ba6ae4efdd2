package remote

import (
	"context"
	"sync"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Call captures one invocation for inspection within tests.
type Call struct {
	Target string
	Method string
	Args   *variant.Value
}

// ReplyFunc lets a Recorder emulate host responses.
type ReplyFunc func(target, method string, args *variant.Value) (*variant.Value, error)

// Recorder is an Invoker that keeps every call it sees. Responses come
// from OnCall when set, otherwise from the wrapped Next invoker, otherwise
// an empty array. The zero value is ready to use.
type Recorder struct {
	OnCall ReplyFunc
	Next   Invoker

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Invoke(ctx context.Context, target, method string, args *variant.Value) (*variant.Value, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Target: target, Method: method, Args: args.Clone()})
	r.mu.Unlock()

	if r.OnCall != nil {
		return r.OnCall(target, method, args)
	}
	if r.Next != nil {
		return r.Next.Invoke(ctx, target, method, args)
	}
	return variant.List(), nil
}

// Calls returns a copy of the recorded call list.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// LastCall returns the most recent call, if any.
func (r *Recorder) LastCall() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// CallsTo filters the recorded calls by target and method.
func (r *Recorder) CallsTo(target, method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Target == target && c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
