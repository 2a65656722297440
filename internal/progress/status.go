package progress

// Status is the lifecycle state of a leaf agent within one query session:
// pending -> running -> success|error. Transitions are imposed by the
// external pipeline; the aggregator stores the last value seen and does not
// validate transition legality.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ParseStatus maps an inbound wire value to a Status. Unknown or empty values
// default to pending; a malformed event must never fail the aggregation.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusPending, StatusRunning, StatusSuccess, StatusError:
		return Status(raw)
	default:
		return StatusPending
	}
}
