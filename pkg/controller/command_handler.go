package controller

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// handleHelp processes HELP command
func (ch *CommandHandler) handleHelp() string {
	return `Available commands:
CREATE topic=<name> [partitions=<N>] [replication=<N>] - create topic (default=4)
LIST - list all topics
DESCRIBE topic=<name> - show queues of a topic
LAG group=<name> - show committed offsets and lag per queue
GROUP_STATUS group=<name> - alias of LAG
HELP - show this help
EXIT - exit`
}

// handleList processes LIST command
func (ch *CommandHandler) handleList(ctx context.Context) string {
	details, err := ch.admin.ListTopics(ctx)
	if err != nil {
		return fmt.Sprintf("ERROR: list topics: %v", err)
	}

	names := details.Names()
	if len(names) == 0 {
		return "(no topics)"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// handleDescribe processes DESCRIBE command
func (ch *CommandHandler) handleDescribe(ctx context.Context, args map[string]string) string {
	topicName := args["topic"]
	if topicName == "" {
		return "ERROR: missing topic parameter. Expected: DESCRIBE topic=<name>"
	}

	details, err := ch.admin.ListTopics(ctx, topicName)
	if err != nil {
		return fmt.Sprintf("ERROR: describe topic: %v", err)
	}
	td, ok := details[topicName]
	if !ok || td.Err != nil {
		return fmt.Sprintf("ERROR: topic '%s' does not exist", topicName)
	}

	ids := make([]int, 0, len(td.Partitions))
	for p := range td.Partitions {
		ids = append(ids, int(p))
	}
	sort.Ints(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "topic %s: %d queues", topicName, len(ids))
	for _, id := range ids {
		pd := td.Partitions[int32(id)]
		fmt.Fprintf(&b, "\n  queue %d: leader=%d replicas=%v", id, pd.Leader, pd.Replicas)
	}
	return b.String()
}

// handleCreate processes CREATE command
func (ch *CommandHandler) handleCreate(ctx context.Context, args map[string]string) string {
	topicName := args["topic"]
	if topicName == "" {
		return "ERROR: missing topic parameter. Expected: CREATE topic=<name> [partitions=<N>]"
	}

	partitions := 4 // default
	if partStr, ok := args["partitions"]; ok {
		n, err := strconv.Atoi(partStr)
		if err != nil || n <= 0 {
			return "ERROR: partitions must be a positive integer"
		}
		partitions = n
	}
	replication := -1
	if rfStr, ok := args["replication"]; ok {
		n, err := strconv.Atoi(rfStr)
		if err != nil || n <= 0 {
			return "ERROR: replication must be a positive integer"
		}
		replication = n
	}

	resp, err := ch.admin.CreateTopic(ctx, int32(partitions), int16(replication), nil, topicName)
	if err == nil {
		err = resp.Err
	}
	if err != nil {
		return fmt.Sprintf("ERROR: create topic '%s': %v", topicName, err)
	}
	return fmt.Sprintf("✅ Topic '%s' created with %d queues", topicName, partitions)
}

// handleLag processes LAG and GROUP_STATUS commands
func (ch *CommandHandler) handleLag(ctx context.Context, args map[string]string) string {
	groupName := args["group"]
	if groupName == "" {
		return "ERROR: missing group parameter. Expected: LAG group=<name>"
	}

	lags, err := ch.admin.Lag(ctx, groupName)
	if err != nil {
		return fmt.Sprintf("ERROR: fetch lag: %v", err)
	}
	l, ok := lags[groupName]
	if !ok {
		return fmt.Sprintf("ERROR: group '%s' not found", groupName)
	}
	if err := l.Error(); err != nil {
		return fmt.Sprintf("ERROR: group '%s': %v", groupName, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "group %s (state=%s, total lag=%d)", l.Group, l.State, l.Lag.Total())
	for _, ml := range l.Lag.Sorted() {
		member := "(unassigned)"
		if ml.Member != nil {
			member = ml.Member.MemberID
		}
		if ml.Err != nil {
			fmt.Fprintf(&b, "\n  %s queue %d: error: %v", ml.Topic, ml.Partition, ml.Err)
			continue
		}
		fmt.Fprintf(&b, "\n  %s queue %d: lag=%d committed=%d end=%d member=%s",
			ml.Topic, ml.Partition, ml.Lag, ml.Commit.At, ml.End.Offset, member)
	}
	return b.String()
}
