package adapter

// Observer receives queue activity counts. internal/metrics provides the
// Prometheus implementation.
type Observer interface {
	Sent(queue string)
	Received(queue, mode string, n int)
	Claimed(queue string, won bool)
	Rejected(queue string)
	Reanchored(queue string)
	Heartbeat(queue string)
	Deleted(queue string)
}

// Receive modes reported to Observer.Received.
const (
	ModePoll  = "poll"
	ModeAwait = "await"
)

type noopObserver struct{}

func (noopObserver) Sent(string)                  {}
func (noopObserver) Received(string, string, int) {}
func (noopObserver) Claimed(string, bool)         {}
func (noopObserver) Rejected(string)              {}
func (noopObserver) Reanchored(string)            {}
func (noopObserver) Heartbeat(string)             {}
func (noopObserver) Deleted(string)               {}
