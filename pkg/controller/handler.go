// Package controller runs the admin shell commands against the broker.
package controller

import (
	"context"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"

	"github.com/downfa11-org/cursus-quickstart/util"
)

// Admin is the subset of kadm.Client the shell uses.
type Admin interface {
	ListTopics(ctx context.Context, topics ...string) (kadm.TopicDetails, error)
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
	Lag(ctx context.Context, groups ...string) (kadm.DescribedGroupLags, error)
}

type CommandHandler struct {
	admin   Admin
	timeout time.Duration
}

func NewCommandHandler(admin Admin, timeout time.Duration) *CommandHandler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CommandHandler{admin: admin, timeout: timeout}
}

func (ch *CommandHandler) logCommandResult(cmd, response string) {
	status := "OK"
	if strings.HasPrefix(response, "ERROR:") {
		status = "ERROR"
	}
	util.Debug("[%s] command=%q", status, strings.TrimSpace(cmd))
}

// HandleCommand runs one shell line and returns the text to print.
func (ch *CommandHandler) HandleCommand(rawCmd string) string {
	cmd := strings.TrimSpace(rawCmd)
	if cmd == "" {
		resp := "ERROR: empty command"
		ch.logCommandResult(rawCmd, resp)
		return resp
	}

	ctx, cancel := context.WithTimeout(context.Background(), ch.timeout)
	defer cancel()

	verb, rest, _ := strings.Cut(cmd, " ")
	args := parseKeyValueArgs(rest)

	var resp string
	switch strings.ToUpper(verb) {
	case "HELP":
		resp = ch.handleHelp()
	case "LIST":
		resp = ch.handleList(ctx)
	case "DESCRIBE":
		resp = ch.handleDescribe(ctx, args)
	case "CREATE":
		resp = ch.handleCreate(ctx, args)
	case "LAG", "GROUP_STATUS":
		resp = ch.handleLag(ctx, args)
	default:
		resp = "ERROR: unknown command: " + cmd + ". Type HELP for available commands."
	}

	ch.logCommandResult(rawCmd, resp)
	return resp
}

func parseKeyValueArgs(argsStr string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Fields(argsStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}
	return result
}
