// skopos-pipe publishes leaf progress events the way the evidence pipeline
// does, for exercising a running gateway without the real pipeline.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type progressEvent struct {
	AgentID       string `json:"agent_id"`
	Status        string `json:"status"`
	EvidenceCount int    `json:"evidence_count"`
	Message       string `json:"message,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, `  skopos-pipe event --query "..." --agent "..." --status "..." [--evidence N] [--message "..."]`)
	fmt.Fprintln(os.Stderr, `  skopos-pipe done --query "..."`)
	fmt.Fprintln(os.Stderr, `  skopos-pipe cancel --query "..."`)
	fmt.Fprintln(os.Stderr, `  skopos-pipe simulate --query "..." --agents "a,b,c" [--delay 500ms] [--fail "b"]`)
	os.Exit(1)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func connect() *nats.Conn {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	conn, err := nats.Connect(natsURL)
	if err != nil {
		fatal("connect to nats: %v", err)
	}
	return conn
}

func publishJSON(conn *nats.Conn, topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fatal("marshal: %v", err)
	}
	if err := conn.Publish(topic, data); err != nil {
		fatal("publish: %v", err)
	}
	conn.Flush()
}

func progressTopic(queryID string) string {
	return fmt.Sprintf("query.%s.progress", queryID)
}

func controlTopic(queryID string) string {
	return fmt.Sprintf("query.%s.control", queryID)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	command := os.Args[1]
	args := parseArgs(os.Args[2:])

	switch command {
	case "event":
		if args["query"] == "" || args["agent"] == "" || args["status"] == "" {
			fatal("--query, --agent, and --status are required")
		}
		evidence := 0
		if args["evidence"] != "" {
			n, err := strconv.Atoi(args["evidence"])
			if err != nil {
				fatal("invalid --evidence: %v", err)
			}
			evidence = n
		}
		conn := connect()
		defer conn.Close()
		publishJSON(conn, progressTopic(args["query"]), progressEvent{
			AgentID:       args["agent"],
			Status:        args["status"],
			EvidenceCount: evidence,
			Message:       args["message"],
		})
		fmt.Printf("Event sent: %s -> %s\n", args["agent"], args["status"])

	case "done", "cancel":
		if args["query"] == "" {
			fatal("--query is required")
		}
		conn := connect()
		defer conn.Close()
		publishJSON(conn, controlTopic(args["query"]), controlMessage{Action: command})
		fmt.Printf("Control sent: %s\n", command)

	case "simulate":
		if args["query"] == "" || args["agents"] == "" {
			fatal("--query and --agents are required")
		}
		delay := 500 * time.Millisecond
		if args["delay"] != "" {
			d, err := time.ParseDuration(args["delay"])
			if err != nil {
				fatal("invalid --delay: %v", err)
			}
			delay = d
		}
		failSet := make(map[string]bool)
		for _, id := range splitAgents(args["fail"]) {
			failSet[id] = true
		}

		conn := connect()
		defer conn.Close()
		simulate(conn, args["query"], splitAgents(args["agents"]), failSet, delay)

	default:
		fatal("unknown command: %s", command)
	}
}

func splitAgents(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// simulate walks every agent through running and a terminal status with a
// delay between events, the same shape the real pipeline produces.
func simulate(conn *nats.Conn, queryID string, agents []string, failSet map[string]bool, delay time.Duration) {
	topic := progressTopic(queryID)

	for _, agent := range agents {
		publishJSON(conn, topic, progressEvent{AgentID: agent, Status: "running"})
		fmt.Printf("  %s running\n", agent)
		time.Sleep(delay)
	}

	for _, agent := range agents {
		ev := progressEvent{AgentID: agent, Status: "success", EvidenceCount: rand.Intn(20) + 1}
		if failSet[agent] {
			ev = progressEvent{AgentID: agent, Status: "error", Message: "simulated failure"}
		}
		publishJSON(conn, topic, ev)
		fmt.Printf("  %s %s (%d items)\n", agent, ev.Status, ev.EvidenceCount)
		time.Sleep(delay)
	}

	fmt.Println("Simulation complete.")
}
