package proto

const (
	// CommandWorkerAck tells einhorn that the sending worker is serving and
	// older workers may be retired.
	CommandWorkerAck = "worker:ack"
	// CommandEhlo is the greeting einhorn control clients open a session with.
	CommandEhlo = "ehlo"
)
