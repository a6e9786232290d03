package queuectl

// Outcome is the state machine's verdict on one execution attempt.
type Outcome struct {
	Status OutcomeStatus
}

type OutcomeStatus = string

var (
	completed    OutcomeStatus = "completed"
	retried      OutcomeStatus = "retried"
	deadLettered OutcomeStatus = "dead_lettered"
)

var (
	OutcomeCompleted    = Outcome{completed}
	OutcomeRetried      = Outcome{retried}
	OutcomeDeadLettered = Outcome{deadLettered}
)

func (o Outcome) String() string {
	return o.Status
}
