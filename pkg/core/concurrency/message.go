package concurrency

// Kind tags the payload carried by a Message
type Kind int

const (
	// KindJob carries a Job to run
	KindJob Kind = iota
	// KindTerminate tells the receiving worker to stop permanently
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindJob:
		return "job"
	case KindTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Message is the envelope moved through the Queue: either a Job or the
// termination sentinel. Terminate carries no payload.
type Message struct {
	kind Kind
	job  Job
}

// NewJob wraps job into a Message
func NewJob(job Job) Message {
	return Message{kind: KindJob, job: job}
}

// Terminate returns the poison pill
func Terminate() Message {
	return Message{kind: KindTerminate}
}

// Kind returns the message kind
func (m Message) Kind() Kind {
	return m.kind
}

// Job returns the carried job, nil for Terminate
func (m Message) Job() Job {
	return m.job
}
