package frame

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Delimiter terminates every message on the wire.
const Delimiter byte = '\n'

var (
	ErrDecode          = errors.New("frame: malformed message")
	ErrLineTooLong     = errors.New("frame: line exceeds limit")
	ErrEmbeddedNewline = errors.New("frame: line contains delimiter")
)

// DecodeError reports a line that arrived intact but did not decode.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// Limits constrains per-line memory use.
type Limits struct {
	MaxLineBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxLineBytes: 1024 * 1024}
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Channel carries newline-delimited JSON messages over a byte stream.
// Bytes read past a delimiter stay buffered for the next call.
type Channel struct {
	reader *bufio.Reader
	w      io.Writer
	rw     io.ReadWriter
	limits Limits

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func NewChannel(rw io.ReadWriter, limits Limits) *Channel {
	if limits.MaxLineBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Channel{
		reader: bufio.NewReader(rw),
		w:      rw,
		rw:     rw,
		limits: limits,
	}
}

// SetReadTimeout bounds each read when the stream supports deadlines. Zero disables.
func (c *Channel) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// SetWriteTimeout bounds each write when the stream supports deadlines. Zero disables.
func (c *Channel) SetWriteTimeout(d time.Duration) {
	c.writeTimeout = d
}

// Send encodes v as compact JSON and writes it with a trailing delimiter in one write.
func (c *Channel) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// encoding/json escapes control characters inside strings, so a raw
	// delimiter can only come from a json.Marshaler that misbehaves.
	if bytes.IndexByte(payload, Delimiter) >= 0 {
		return ErrEmbeddedNewline
	}
	return c.write(append(payload, Delimiter))
}

// WriteLine writes s as one raw line.
func (c *Channel) WriteLine(s string) error {
	if bytes.IndexByte([]byte(s), Delimiter) >= 0 {
		return ErrEmbeddedNewline
	}
	return c.write(append([]byte(s), Delimiter))
}

// Receive reads one line and decodes it into v. A peer that closes before
// completing a line yields io.EOF; an undecodable line yields *DecodeError.
func (c *Channel) Receive(v any) error {
	line, err := c.readLine()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(line, v); err != nil {
		return &DecodeError{Line: line, Err: err}
	}
	return nil
}

// ReadLine returns one raw line without the delimiter or a trailing carriage return.
func (c *Channel) ReadLine() (string, error) {
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

func (c *Channel) readLine() ([]byte, error) {
	if c.readTimeout > 0 {
		if d, ok := c.rw.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
	}
	// An oversized line is drained up to its delimiter so a peer that
	// closes mid-line still reads as end of stream.
	var line []byte
	tooLong := false
	for {
		chunk, err := c.reader.ReadSlice(Delimiter)
		if !tooLong && len(line)+len(chunk) > c.limits.MaxLineBytes+1 {
			tooLong = true
			line = nil
		}
		if !tooLong {
			line = append(line, chunk...)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if tooLong {
		return nil, ErrLineTooLong
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func (c *Channel) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if d, ok := c.rw.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
	}
	_, err := c.w.Write(payload)
	return err
}
