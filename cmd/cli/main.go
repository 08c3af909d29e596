package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/pkg/controller"
	"github.com/downfa11-org/cursus-quickstart/pkg/kafka"
)

func main() {
	cfg, err := config.LoadBrokerConfig(os.Args[1:])
	if err != nil {
		fmt.Println("❌ Failed to load config:", err)
		os.Exit(1)
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BrokerAddrs...),
		kgo.WithLogger(kafka.NewLogger()),
	)
	if err != nil {
		fmt.Println("❌ Failed to create client:", err)
		os.Exit(1)
	}
	defer cl.Close()

	ch := controller.NewCommandHandler(kadm.NewClient(cl), time.Duration(cfg.RequestTimeoutMS)*time.Millisecond)

	fmt.Println("🔹 Connected to", strings.Join(cfg.BrokerAddrs, ","), "Type HELP for commands.")
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "EXIT") {
			break
		}
		fmt.Println(ch.HandleCommand(line))
	}
}
