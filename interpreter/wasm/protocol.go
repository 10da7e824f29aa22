package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/webinterp/hostfunc"
	"github.com/caffeineduck/webinterp/interpreter"
)

// Frames written by the guest on stderr. Format: \x00WI_<KIND>[:payload]\x00
const (
	frameStart = "\x00WI_"
	frameEnd   = '\x00'

	frameParse = "PARSE"
	frameError = "ERROR"
	frameMeta  = "META"
	frameDone  = "DONE"
	frameCall  = "CALL"
)

// command is one JSON line written to the guest's stdin.
type command struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

type callRequest struct {
	ID   string         `json:"id,omitempty"`
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// syncWriter serializes whole-line writes to the guest's stdin.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal message"}`)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(append(data, '\n'))
	return err
}

// protocol consumes the guest's stderr. Frames update the session; all other
// stderr text becomes Meta lines.
type protocol struct {
	ctx      context.Context
	registry *hostfunc.Registry
	streams  *interpreter.Streams
	replies  *syncWriter
	stderr   *interpreter.LineWriter

	parsed chan bool
	done   chan struct{}

	buf   bytes.Buffer
	phase interpreter.Phase
	mu    sync.Mutex
	calls sync.WaitGroup
}

func newProtocol(ctx context.Context, registry *hostfunc.Registry, streams *interpreter.Streams, replies *syncWriter) *protocol {
	return &protocol{
		ctx:      ctx,
		registry: registry,
		streams:  streams,
		replies:  replies,
		stderr:   interpreter.NewLineWriter(&streams.Meta),
		parsed:   make(chan bool, 1),
		done:     make(chan struct{}, 1),
		phase:    interpreter.PhaseParse,
	}
}

func (p *protocol) setPhase(phase interpreter.Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

func (p *protocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)
	for {
		content := p.buf.Bytes()
		idx := bytes.Index(content, []byte(frameStart))
		if idx == -1 {
			n := len(content) - partialFrameStart(content)
			p.stderr.Write(content[:n])
			p.buf.Next(n)
			break
		}
		if idx > 0 {
			p.stderr.Write(content[:idx])
			p.buf.Next(idx)
			continue
		}

		body := content[len(frameStart):]
		end := bytes.IndexByte(body, frameEnd)
		if end == -1 {
			break
		}
		frame := string(body[:end])
		p.buf.Next(len(frameStart) + end + 1)
		p.handle(frame)
	}

	return len(data), nil
}

// partialFrameStart returns the length of the longest suffix of content that
// could begin a frame split across writes.
func partialFrameStart(content []byte) int {
	for n := len(frameStart) - 1; n > 0; n-- {
		if bytes.HasSuffix(content, []byte(frameStart[:n])) {
			return n
		}
	}
	return 0
}

func (p *protocol) handle(frame string) {
	kind, payload, _ := strings.Cut(frame, ":")
	switch kind {
	case frameParse:
		select {
		case p.parsed <- payload == "ok":
		default:
		}
	case frameError:
		p.streams.Error.Append(p.errorRecord(payload))
	case frameMeta:
		interpreter.AppendLines(&p.streams.Meta, payload)
	case frameDone:
		select {
		case p.done <- struct{}{}:
		default:
		}
	case frameCall:
		p.call(payload)
	default:
		p.streams.Meta.Append("unknown frame " + kind)
	}
}

// errorRecord decodes a WI_ERROR payload. Fields the guest sends beyond the
// known ones travel in Extra; a payload that is not a JSON object becomes the
// message.
func (p *protocol) errorRecord(payload string) interpreter.ErrorRecord {
	var rec interpreter.ErrorRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		rec = interpreter.ErrorRecord{Message: payload}
	} else if _, raw := rec.Extra["message"]; rec.Message == "" && !raw {
		rec.Message = payload
	}
	if _, raw := rec.Extra["phase"]; rec.Phase == "" && !raw {
		rec.Phase = p.phase
	}
	if _, raw := rec.Extra["severity"]; rec.Severity == "" && !raw {
		rec.Severity = "error"
	}
	return rec
}

// call answers a host call on stdin. The reply is written from a goroutine
// because the guest is blocked in its stderr write until Write returns.
func (p *protocol) call(payload string) {
	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		p.reply(callResponse{Error: "invalid call format"})
		return
	}

	p.calls.Add(1)
	go func() {
		defer p.calls.Done()
		resp := callResponse{ID: req.ID}
		result, err := p.registry.Call(p.ctx, req.Fn, req.Args)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Data = result
		}
		p.replies.writeLine(resp)
	}()
}

func (p *protocol) reply(resp callResponse) {
	p.calls.Add(1)
	go func() {
		defer p.calls.Done()
		p.replies.writeLine(resp)
	}()
}

// flush emits buffered stderr text that never ended in a newline.
func (p *protocol) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() > 0 {
		p.stderr.Write(p.buf.Bytes())
		p.buf.Reset()
	}
	p.stderr.Flush()
}

// wait blocks until every pending host call has been answered.
func (p *protocol) wait() {
	p.calls.Wait()
}
