// Package proto encapsulates the messages exchanged with einhorn over its
// control socket, as well as the functions for reading and writing them off
// the wire.
//
// Each message is a single JSON document followed by a newline. So that a
// message can never span lines, the characters '%' and '\n' inside the
// document are percent-escaped before it is written, and unescaped after it is
// read. This matches what einhorn's own clients put on the socket.
//
// A worker announces that it is up by sending:
//
//	{"command":"worker:ack","pid":1234}
//
// einhorn does not reply to an ack.
package proto
