package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication. The pipeline publishes leaf
// progress on the query topics; derived snapshots go out on the events
// topics.

func TopicQueryProgress(queryID string) string {
	return fmt.Sprintf("query.%s.progress", queryID)
}

func TopicQueryControl(queryID string) string {
	return fmt.Sprintf("query.%s.control", queryID)
}

func TopicEventsQuery(queryID string) string {
	return fmt.Sprintf("events.query.%s", queryID)
}

const (
	TopicEventsAll       = "events.>"
	TopicEventsQueryAll  = "events.query.*"
	TopicEventsRetention = "events.retention"
)
