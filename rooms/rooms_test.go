package rooms

import (
	"context"
	"testing"
)

func TestFirstFrame(t *testing.T) {
	if got := FirstFrame(nil); got != nil {
		t.Fatalf("expected nil for no frames, got %q", got)
	}
	frames := [][]byte{[]byte("a"), []byte("b")}
	if got := FirstFrame(frames); string(got) != "a" {
		t.Fatalf("expected first frame, got %q", got)
	}
}

func TestForwarderFunc(t *testing.T) {
	var gotIDs []string
	var gotPayload []byte
	f := ForwarderFunc(func(ctx context.Context, sparkIDs []string, payload []byte) error {
		gotIDs = sparkIDs
		gotPayload = payload
		return nil
	})
	if err := f.ForwardToSparks(context.Background(), []string{"s1"}, []byte("x")); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(gotIDs) != 1 || gotIDs[0] != "s1" || string(gotPayload) != "x" {
		t.Fatalf("forwarder func not invoked with arguments: %v %q", gotIDs, gotPayload)
	}
}
