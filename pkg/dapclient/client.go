// Package dapclient is a minimal Debug Adapter Protocol client used to drive
// debugpy and the native debug adapters. Messages are framed and encoded
// with go-dap; bodies are kept raw so custom requests such as
// pydevdSystemInfo pass through untouched.
package dapclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/go-dap"

	"pycppdbg/pkg/logger"
	"pycppdbg/pkg/utils"
)

// ErrClosed is returned for requests on a client whose adapter is gone.
var ErrClosed = errors.New("debug adapter connection closed")

// ResponseError is an unsuccessful response from the adapter.
type ResponseError struct {
	Command string
	Message string
	Body    json.RawMessage
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s request failed", e.Command)
	}
	return fmt.Sprintf("%s request failed: %s", e.Command, e.Message)
}

// Event is an adapter event with its raw body.
type Event struct {
	Name string
	Body json.RawMessage
}

// ReverseHandler answers requests sent by the adapter (runInTerminal,
// startDebugging). The returned body is sent back in a success response.
type ReverseHandler func(command string, args json.RawMessage) (any, error)

// message is the union of request, response and event fields.
type message struct {
	dap.ProtocolMessage

	Command    string          `json:"command,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Event      string          `json:"event,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

type outgoingRequest struct {
	dap.Request
	Arguments any `json:"arguments,omitempty"`
}

type outgoingResponse struct {
	dap.Response
	Body any `json:"body,omitempty"`
}

// Call is an in-flight request.
type Call struct {
	Command string
	done    chan struct{}
	body    json.RawMessage
	err     error
}

// Wait blocks until the response arrives, the client closes, or ctx ends.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return c.body, c.err
	}
}

// Client is a DAP client bound to a single adapter connection.
type Client struct {
	name   string
	rwc    io.ReadWriteCloser
	reader *bufio.Reader

	writeMu sync.Mutex
	seq     atomic.Int64

	mu       sync.Mutex
	pending  map[int]*Call
	handlers map[string][]func(Event)
	waiters  map[string][]chan Event
	reverse  ReverseHandler

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// New wraps an adapter connection and starts reading from it. name is used
// for logging only.
func New(name string, rwc io.ReadWriteCloser) *Client {
	c := &Client{
		name:     name,
		rwc:      rwc,
		reader:   bufio.NewReader(rwc),
		pending:  make(map[int]*Call),
		handlers: make(map[string][]func(Event)),
		waiters:  make(map[string][]chan Event),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Done is closed when the adapter connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close shuts the connection down and fails all pending calls.
func (c *Client) Close() error {
	err := c.rwc.Close()
	c.shutdown(ErrClosed)
	return err
}

// OnEvent registers fn for every event called name ("*" for all events).
// Handlers run on the read goroutine and must not block.
func (c *Client) OnEvent(name string, fn func(Event)) {
	c.mu.Lock()
	c.handlers[name] = append(c.handlers[name], fn)
	c.mu.Unlock()
}

// Await returns a channel receiving the next event called name. Register
// before sending the request that triggers the event to avoid missing it.
// The channel is closed without a value if the connection ends first.
func (c *Client) Await(name string) <-chan Event {
	ch := make(chan Event, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		close(ch)
		return ch
	default:
	}
	c.waiters[name] = append(c.waiters[name], ch)
	return ch
}

// OnReverseRequest installs the handler for adapter-initiated requests.
func (c *Client) OnReverseRequest(fn ReverseHandler) {
	c.mu.Lock()
	c.reverse = fn
	c.mu.Unlock()
}

// Start sends a request without waiting for its response.
func (c *Client) Start(command string, args any) (*Call, error) {
	seq := int(c.seq.Add(1))
	call := &Call{Command: command, done: make(chan struct{})}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.pending[seq] = call
	c.mu.Unlock()

	req := &outgoingRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
			Command:         command,
		},
		Arguments: args,
	}
	if err := c.write(req); err != nil {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
		return nil, fmt.Errorf("send %s request: %w", command, err)
	}
	return call, nil
}

// Request sends a request and waits for the response body.
func (c *Client) Request(ctx context.Context, command string, args any) (json.RawMessage, error) {
	call, err := c.Start(command, args)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

func (c *Client) write(msg dap.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return dap.WriteProtocolMessage(c.rwc, msg)
}

func (c *Client) readLoop() {
	log := logger.For(c.name)
	for {
		raw, err := dap.ReadBaseMessage(c.reader)
		if err != nil {
			if utils.IsConnectionClosedError(err) {
				log.Debug("adapter connection closed")
				c.shutdown(ErrClosed)
			} else {
				log.Error("error reading from adapter", "err", err)
				c.shutdown(fmt.Errorf("read from adapter: %w", err))
			}
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn("dropping malformed message", "err", err)
			continue
		}

		switch msg.Type {
		case "response":
			c.handleResponse(&msg)
		case "event":
			c.handleEvent(&msg)
		case "request":
			go c.handleReverse(&msg)
		default:
			log.Warn("dropping message of unknown type", "type", msg.Type)
		}
	}
}

func (c *Client) handleResponse(msg *message) {
	c.mu.Lock()
	call, ok := c.pending[msg.RequestSeq]
	delete(c.pending, msg.RequestSeq)
	c.mu.Unlock()
	if !ok {
		return
	}
	if !msg.Success {
		call.err = &ResponseError{Command: msg.Command, Message: msg.Message, Body: msg.Body}
	} else {
		call.body = msg.Body
	}
	close(call.done)
}

func (c *Client) handleEvent(msg *message) {
	evt := Event{Name: msg.Event, Body: msg.Body}

	c.mu.Lock()
	handlers := append(append([]func(Event){}, c.handlers[msg.Event]...), c.handlers["*"]...)
	waiters := c.waiters[msg.Event]
	delete(c.waiters, msg.Event)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
	for _, ch := range waiters {
		ch <- evt
		close(ch)
	}
}

func (c *Client) handleReverse(msg *message) {
	c.mu.Lock()
	handler := c.reverse
	c.mu.Unlock()

	resp := &outgoingResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: int(c.seq.Add(1)), Type: "response"},
			RequestSeq:      msg.Seq,
			Command:         msg.Command,
			Success:         true,
		},
	}
	if handler == nil {
		resp.Success = false
		resp.Message = fmt.Sprintf("%s is not supported", msg.Command)
	} else if body, err := handler(msg.Command, msg.Arguments); err != nil {
		resp.Success = false
		resp.Message = err.Error()
	} else {
		resp.Body = body
	}

	if err := c.write(resp); err != nil {
		logger.For(c.name).Warn("failed to answer reverse request", "command", msg.Command, "err", err)
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		pending := c.pending
		c.pending = make(map[int]*Call)
		waiters := c.waiters
		c.waiters = make(map[string][]chan Event)
		close(c.done)
		c.mu.Unlock()

		for _, call := range pending {
			call.err = ErrClosed
			close(call.done)
		}
		for _, list := range waiters {
			for _, ch := range list {
				close(ch)
			}
		}
	})
}
