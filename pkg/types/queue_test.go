package types_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/downfa11-org/cursus-quickstart/pkg/types"
)

func TestDistinctQueues(t *testing.T) {
	in := []types.MessageQueue{
		{Topic: "b", QueueID: 0},
		{Topic: "a", QueueID: 2},
		{Topic: "a", QueueID: 1},
		{Topic: "a", QueueID: 2},
	}
	want := []types.MessageQueue{
		{Topic: "a", QueueID: 1},
		{Topic: "a", QueueID: 2},
		{Topic: "b", QueueID: 0},
	}
	if diff := cmp.Diff(want, types.DistinctQueues(in)); diff != "" {
		t.Errorf("DistinctQueues mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueIDs(t *testing.T) {
	qs := []types.MessageQueue{{Topic: "t", QueueID: 0}, {Topic: "t", QueueID: 3}}
	if got := types.QueueIDs(qs); got != "0,3" {
		t.Errorf("QueueIDs = %q; want %q", got, "0,3")
	}
	if got := types.QueueIDs(nil); got != "" {
		t.Errorf("QueueIDs(nil) = %q; want empty", got)
	}
}
