package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

func TestRecorder_RecordsClones(t *testing.T) {
	rec := &Recorder{}
	args := variant.List(variant.Str("Name:="), variant.Str("Box1"))

	if _, err := rec.Invoke(context.Background(), TargetEditor, "CreateBox", args); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	// Mutating the caller's arrays afterwards must not change the record.
	args.Append(variant.Str("stale"))

	call, ok := rec.LastCall()
	if !ok {
		t.Fatal("no call recorded")
	}
	if call.Target != TargetEditor || call.Method != "CreateBox" {
		t.Errorf("recorded %s.%s, want editor.CreateBox", call.Target, call.Method)
	}
	if call.Args.Len() != 2 {
		t.Errorf("recorded args length = %d, want 2", call.Args.Len())
	}
}

func TestRecorder_OnCallReply(t *testing.T) {
	rec := &Recorder{
		OnCall: func(target, method string, args *variant.Value) (*variant.Value, error) {
			if method == "GetObjectIDByName" {
				return variant.List(variant.Int(12)), nil
			}
			return nil, errors.New("unexpected method")
		},
	}

	got, err := rec.Invoke(context.Background(), TargetEditor, "GetObjectIDByName", variant.List(variant.Str("Box1")))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if id, ok := got.Item(0).AsInt(); !ok || id != 12 {
		t.Errorf("reply = %v, want Array(12)", got)
	}
}

func TestRecorder_Delegates(t *testing.T) {
	inner := &Recorder{}
	outer := &Recorder{Next: inner}

	if _, err := outer.Invoke(context.Background(), TargetDesktop, "GetVersion", nil); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(inner.Calls()) != 1 {
		t.Errorf("inner saw %d calls, want 1", len(inner.Calls()))
	}
}

func TestRecorder_CallsToAndReset(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	rec.Invoke(ctx, TargetEditor, "CreateBox", nil)
	rec.Invoke(ctx, TargetEditor, "CreateSphere", nil)
	rec.Invoke(ctx, TargetEditor, "CreateBox", nil)

	if got := len(rec.CallsTo(TargetEditor, "CreateBox")); got != 2 {
		t.Errorf("CallsTo(CreateBox) = %d, want 2", got)
	}

	rec.Reset()
	if got := len(rec.Calls()); got != 0 {
		t.Errorf("calls after Reset = %d, want 0", got)
	}
}
