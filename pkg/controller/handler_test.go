package controller_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/twmb/franz-go/pkg/kadm"

	"github.com/downfa11-org/cursus-quickstart/pkg/controller"
)

type fakeAdmin struct {
	topics  kadm.TopicDetails
	lags    kadm.DescribedGroupLags
	listErr error
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{topics: kadm.TopicDetails{}, lags: kadm.DescribedGroupLags{}}
}

func (f *fakeAdmin) ListTopics(_ context.Context, topics ...string) (kadm.TopicDetails, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(topics) == 0 {
		return f.topics, nil
	}
	out := kadm.TopicDetails{}
	for _, t := range topics {
		if td, ok := f.topics[t]; ok {
			out[t] = td
		}
	}
	return out, nil
}

func (f *fakeAdmin) CreateTopic(_ context.Context, partitions int32, _ int16, _ map[string]*string, topic string) (kadm.CreateTopicResponse, error) {
	if _, ok := f.topics[topic]; ok {
		return kadm.CreateTopicResponse{Topic: topic, Err: errors.New("topic already exists")}, nil
	}
	pds := kadm.PartitionDetails{}
	for p := int32(0); p < partitions; p++ {
		pds[p] = kadm.PartitionDetail{Topic: topic, Partition: p, Leader: 1, Replicas: []int32{1}}
	}
	f.topics[topic] = kadm.TopicDetail{Topic: topic, Partitions: pds}
	return kadm.CreateTopicResponse{Topic: topic}, nil
}

func (f *fakeAdmin) Lag(_ context.Context, groups ...string) (kadm.DescribedGroupLags, error) {
	out := kadm.DescribedGroupLags{}
	for _, g := range groups {
		if l, ok := f.lags[g]; ok {
			out[g] = l
		}
	}
	return out, nil
}

func TestHandleCommand_CreateListDescribe(t *testing.T) {
	ch := controller.NewCommandHandler(newFakeAdmin(), 0)

	if resp := ch.HandleCommand("LIST"); resp != "(no topics)" {
		t.Fatalf("expected no topics, got %q", resp)
	}

	resp := ch.HandleCommand("CREATE topic=orders partitions=3")
	if !strings.Contains(resp, "created with 3 queues") {
		t.Fatalf("unexpected create response: %q", resp)
	}
	resp = ch.HandleCommand("create topic=audit")
	if !strings.Contains(resp, "created with 4 queues") {
		t.Fatalf("expected default partitions, got %q", resp)
	}

	if resp := ch.HandleCommand("LIST"); resp != "audit, orders" {
		t.Errorf("unexpected list: %q", resp)
	}

	resp = ch.HandleCommand("DESCRIBE topic=orders")
	if !strings.HasPrefix(resp, "topic orders: 3 queues") || strings.Count(resp, "queue ") != 3 {
		t.Errorf("unexpected describe: %q", resp)
	}

	resp = ch.HandleCommand("CREATE topic=orders")
	if !strings.HasPrefix(resp, "ERROR:") {
		t.Errorf("expected duplicate create to fail, got %q", resp)
	}
}

func TestHandleCommand_Errors(t *testing.T) {
	fa := newFakeAdmin()
	ch := controller.NewCommandHandler(fa, 0)

	tests := []struct {
		cmd  string
		want string
	}{
		{"", "ERROR: empty command"},
		{"FOO", "ERROR: unknown command"},
		{"CREATE", "ERROR: missing topic"},
		{"CREATE topic=x partitions=0", "ERROR: partitions must be a positive integer"},
		{"CREATE topic=x replication=abc", "ERROR: replication must be a positive integer"},
		{"DESCRIBE", "ERROR: missing topic"},
		{"DESCRIBE topic=missing", "ERROR: topic 'missing' does not exist"},
		{"LAG", "ERROR: missing group"},
		{"LAG group=ghost", "ERROR: group 'ghost' not found"},
	}
	for _, tt := range tests {
		if got := ch.HandleCommand(tt.cmd); !strings.HasPrefix(got, tt.want) {
			t.Errorf("HandleCommand(%q) = %q, want prefix %q", tt.cmd, got, tt.want)
		}
	}

	fa.listErr = errors.New("no brokers")
	if got := ch.HandleCommand("LIST"); !strings.Contains(got, "no brokers") {
		t.Errorf("expected list error, got %q", got)
	}
}

func TestHandleCommand_Lag(t *testing.T) {
	fa := newFakeAdmin()
	member := &kadm.DescribedGroupMember{MemberID: "consumer-1"}
	fa.lags["SampleGroup"] = kadm.DescribedGroupLag{
		Group: "SampleGroup",
		State: "Stable",
		Lag: kadm.GroupLag{
			"SampleTopic": {
				0: {Topic: "SampleTopic", Partition: 0, Member: member, Commit: kadm.Offset{At: 10}, End: kadm.ListedOffset{Offset: 15}, Lag: 5},
				1: {Topic: "SampleTopic", Partition: 1, Commit: kadm.Offset{At: 3}, End: kadm.ListedOffset{Offset: 3}, Lag: 0},
			},
		},
	}
	ch := controller.NewCommandHandler(fa, 0)

	resp := ch.HandleCommand("GROUP_STATUS group=SampleGroup")
	for _, want := range []string{
		"group SampleGroup (state=Stable, total lag=5)",
		"SampleTopic queue 0: lag=5 committed=10 end=15 member=consumer-1",
		"SampleTopic queue 1: lag=0 committed=3 end=3 member=(unassigned)",
	} {
		if !strings.Contains(resp, want) {
			t.Errorf("lag output missing %q:\n%s", want, resp)
		}
	}
}
