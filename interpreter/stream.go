package interpreter

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// ErrDrained is returned when a stream is read a second time.
var ErrDrained = errors.New("output streams already drained")

// Stream is an append-only sequence that can be read exactly once.
// Appends after the stream has been drained are discarded.
type Stream[T any] struct {
	mu      sync.Mutex
	items   []T
	drained bool
}

// Append adds items to the end of the stream.
func (s *Stream[T]) Append(items ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return
	}
	s.items = append(s.items, items...)
}

// Len returns the number of items appended so far.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Drain returns every appended item in order and seals the stream.
// The returned slice is never nil.
func (s *Stream[T]) Drain() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return nil, ErrDrained
	}
	s.drained = true

	out := make([]T, len(s.items))
	copy(out, s.items)
	s.items = nil
	return out, nil
}

// Streams groups the three output channels of a session.
type Streams struct {
	Standard Stream[string]
	Error    Stream[ErrorRecord]
	Meta     Stream[string]

	mu      sync.Mutex
	drained bool
}

// NewStreams returns empty output streams.
func NewStreams() *Streams {
	return &Streams{}
}

// Output is the drained content of Streams.
type Output struct {
	Standard []string
	Error    []ErrorRecord
	Meta     []string
}

// Drain reads all three streams to completion. It succeeds once per Streams.
func (s *Streams) Drain() (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return Output{}, ErrDrained
	}
	s.drained = true

	var (
		out Output
		err error
	)
	if out.Standard, err = s.Standard.Drain(); err != nil {
		return Output{}, err
	}
	if out.Error, err = s.Error.Drain(); err != nil {
		return Output{}, err
	}
	if out.Meta, err = s.Meta.Drain(); err != nil {
		return Output{}, err
	}
	return out, nil
}

// AppendLines splits text on newlines and appends each line to s.
// A single trailing newline does not produce an empty line.
func AppendLines(s *Stream[string], text string) {
	text = strings.TrimSuffix(text, "\n")
	s.Append(strings.Split(text, "\n")...)
}

// LineWriter is an io.Writer that appends complete lines to a stream.
// Call Flush to emit a trailing line that lacks a newline.
type LineWriter struct {
	stream *Stream[string]
	buf    bytes.Buffer
	mu     sync.Mutex
}

// NewLineWriter returns a LineWriter appending to stream.
func NewLineWriter(stream *Stream[string]) *LineWriter {
	return &LineWriter{stream: stream}
}

func (w *LineWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(data)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx == -1 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.stream.Append(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
	}
	return len(data), nil
}

// Flush appends any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	w.stream.Append(w.buf.String())
	w.buf.Reset()
}
