// Package daptest provides a scriptable fake debug adapter for tests of
// code that drives debugpy and the native adapters over DAP.
package daptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
)

// Message is a decoded DAP message as seen by the fake adapter.
type Message struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Event      string          `json:"event,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Handler answers a request. A non-nil error becomes an unsuccessful
// response carrying the error text.
type Handler func(a *Adapter, req Message) (any, error)

type request struct {
	dap.Request
	Arguments any `json:"arguments,omitempty"`
}

type response struct {
	dap.Response
	Body any `json:"body,omitempty"`
}

type event struct {
	dap.Event
	Body any `json:"body,omitempty"`
}

// Adapter is the adapter end of a DAP connection.
type Adapter struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex
	mu      sync.Mutex
	seq     int
	handler map[string]Handler
	seen    []Message

	// Responses receives responses to requests sent with SendRequest.
	Responses chan Message
}

// NewAdapter wraps the adapter side of a connection. Call Serve to start
// answering requests.
func NewAdapter(rw io.ReadWriteCloser) *Adapter {
	return &Adapter{
		rw:        rw,
		reader:    bufio.NewReader(rw),
		handler:   make(map[string]Handler),
		Responses: make(chan Message, 16),
	}
}

// Pipe returns the client end of an in-memory connection whose other end
// is served by a new Adapter.
func Pipe() (net.Conn, *Adapter) {
	client, server := net.Pipe()
	return client, NewAdapter(server)
}

// Handle installs h for command. Unhandled commands get an empty success
// response.
func (a *Adapter) Handle(command string, h Handler) {
	a.mu.Lock()
	a.handler[command] = h
	a.mu.Unlock()
}

// Fail makes command answer with an error response.
func (a *Adapter) Fail(command, message string) {
	a.Handle(command, func(*Adapter, Message) (any, error) {
		return nil, fmt.Errorf("%s", message)
	})
}

// Serve processes messages until the connection closes.
func (a *Adapter) Serve() error {
	for {
		raw, err := dap.ReadBaseMessage(a.reader)
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}

		switch msg.Type {
		case "request":
			a.mu.Lock()
			a.seen = append(a.seen, msg)
			h := a.handler[msg.Command]
			a.mu.Unlock()
			if err := a.answer(msg, h); err != nil {
				return err
			}
		case "response":
			a.Responses <- msg
		}
	}
}

// Go runs Serve in the background.
func (a *Adapter) Go() {
	go func() { _ = a.Serve() }()
}

// Close closes the adapter end of the connection.
func (a *Adapter) Close() error { return a.rw.Close() }

func (a *Adapter) answer(req Message, h Handler) error {
	var (
		body any
		err  error
	)
	if h != nil {
		body, err = h(a, req)
	}
	resp := &response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Command:         req.Command,
			Success:         err == nil,
		},
		Body: body,
	}
	if err != nil {
		resp.Message = err.Error()
	}
	return a.write(resp)
}

// SendEvent emits an event to the client.
func (a *Adapter) SendEvent(name string, body any) error {
	return a.write(&event{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
			Event:           name,
		},
		Body: body,
	})
}

// SendRequest sends a reverse request; the reply arrives on Responses.
func (a *Adapter) SendRequest(command string, args any) (int, error) {
	seq := a.nextSeq()
	return seq, a.write(&request{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
			Command:         command,
		},
		Arguments: args,
	})
}

// Received returns the requests seen so far.
func (a *Adapter) Received() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.seen...)
}

// Commands returns the commands of the requests seen so far.
func (a *Adapter) Commands() []string {
	var out []string
	for _, m := range a.Received() {
		out = append(out, m.Command)
	}
	return out
}

// Request returns the last request received for command.
func (a *Adapter) Request(command string) (Message, bool) {
	seen := a.Received()
	for i := len(seen) - 1; i >= 0; i-- {
		if seen[i].Command == command {
			return seen[i], true
		}
	}
	return Message{}, false
}

func (a *Adapter) nextSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func (a *Adapter) write(m dap.Message) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return dap.WriteProtocolMessage(a.rw, m)
}
