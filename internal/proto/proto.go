package proto

// Request is a command sent to einhorn's control socket.
type Request struct {
	Command string   `json:"command"`
	Pid     int      `json:"pid,omitempty"`
	Args    []string `json:"args,omitempty"`
}
