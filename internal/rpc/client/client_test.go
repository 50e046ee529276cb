package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// pipeTransport is an in-memory transport; the test plays the server.
type pipeTransport struct {
	in     chan []byte
	out    chan []byte
	done   chan struct{}
	closed bool
}

func newPipe() *pipeTransport {
	return &pipeTransport{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (p *pipeTransport) ID() string { return "pipe" }

func (p *pipeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, io.EOF
	}
}

func (p *pipeTransport) Write(_ context.Context, data []byte) error {
	select {
	case <-p.done:
		return errors.New("closed")
	default:
	}
	p.out <- data
	return nil
}

func (p *pipeTransport) Close() error {
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	return nil
}

func (p *pipeTransport) Done() <-chan struct{} { return p.done }

// respond answers the next request with fn's response.
func (p *pipeTransport) respond(fn func(*message.Request) *message.Response) {
	go func() {
		req, err := message.ParseRequest(<-p.out)
		if err != nil {
			return
		}
		data, err := json.Marshal(fn(req))
		if err != nil {
			return
		}
		p.in <- data
	}()
}

func TestClient_CallResult(t *testing.T) {
	pipe := newPipe()
	c := New(pipe, nil)
	defer c.Close()

	pipe.respond(func(req *message.Request) *message.Response {
		resp, _ := message.NewSuccessResponse(req.ID, map[string]string{"code": "ABCD-EFGH"})
		return resp
	})

	var result struct {
		Code string `json:"code"`
	}
	if err := c.Call(context.Background(), "pairing.request_code", map[string]string{"phone": "1"}, &result); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result.Code != "ABCD-EFGH" {
		t.Errorf("code = %q", result.Code)
	}
}

func TestClient_CallError(t *testing.T) {
	pipe := newPipe()
	c := New(pipe, nil)
	defer c.Close()

	pipe.respond(func(req *message.Request) *message.Response {
		return message.NewErrorResponse(req.ID, message.NewError(message.RateLimited, "rate-overlimit"))
	})

	err := c.Call(context.Background(), "groups.rename", nil, nil)
	var rpcErr *message.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != message.RateLimited {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestClient_Notifications(t *testing.T) {
	pipe := newPipe()
	got := make(chan string, 1)
	c := New(pipe, func(method string, params json.RawMessage) {
		got <- method + " " + string(params)
	})
	defer c.Close()

	pipe.in <- []byte(`{"jsonrpc":"2.0","method":"qr","params":{"code":"2@x"}}`)

	select {
	case s := <-got:
		if s != `qr {"code":"2@x"}` {
			t.Errorf("notification = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestClient_CloseFailsPendingCalls(t *testing.T) {
	pipe := newPipe()
	c := New(pipe, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Call(context.Background(), "groups.list", nil, nil) }()
	select {
	case <-pipe.out:
	case <-time.After(time.Second):
		t.Fatal("no request sent")
	}

	_ = c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("call did not return")
	}

	<-c.Done()
	if !errors.Is(c.Err(), io.EOF) {
		t.Errorf("Err() = %v, want io.EOF", c.Err())
	}
	if err := c.Call(context.Background(), "groups.list", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestClient_CallContextCancelled(t *testing.T) {
	pipe := newPipe()
	c := New(pipe, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Call(ctx, "groups.list", nil, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
