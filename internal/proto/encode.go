package proto

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var escaper = strings.NewReplacer("%", "%25", "\n", "%0A")

// WriteMessage writes obj as a single escaped, newline terminated JSON line.
func WriteMessage(dst io.Writer, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrap(err, "could not encode message")
	}

	var line bytes.Buffer
	line.WriteString(escaper.Replace(string(data)))
	line.WriteByte('\n')
	// A single write, so a message is never interleaved with another writer's.
	if _, err := dst.Write(line.Bytes()); err != nil {
		return errors.Wrap(err, "could not write message")
	}
	return nil
}

// ReadMessage reads one line written by WriteMessage and decodes it into obj.
func ReadMessage(src *bufio.Reader, obj interface{}) error {
	line, err := src.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "protocol error: could not read message")
	}

	data, err := url.PathUnescape(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return errors.Wrap(err, "protocol error: bad escape sequence")
	}
	if err := json.Unmarshal([]byte(data), obj); err != nil {
		return errors.Wrap(err, "could not decode message")
	}
	return nil
}
