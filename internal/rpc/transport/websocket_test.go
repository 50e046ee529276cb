package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	srv := echoServer(t)
	ctx := context.Background()

	tr, err := Dial(ctx, wsURL(srv), time.Second, nil, WithTransportID("gw-1"))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if tr.ID() != "gw-1" {
		t.Errorf("ID = %q", tr.ID())
	}
	if tr.Info().Type != "websocket" {
		t.Errorf("Info().Type = %q", tr.Info().Type)
	}

	if err := tr.Write(ctx, []byte(`{"jsonrpc":"2.0"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != `{"jsonrpc":"2.0"}` {
		t.Errorf("Read = %s", data)
	}
}

func TestWebSocketTransport_PeerCloseIsEOF(t *testing.T) {
	srv := echoServer(t)
	ctx := context.Background()

	tr, err := Dial(ctx, wsURL(srv), time.Second, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Write(ctx, []byte("bye")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := tr.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWebSocketTransport_Close(t *testing.T) {
	srv := echoServer(t)

	tr, err := Dial(context.Background(), wsURL(srv), time.Second, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	select {
	case <-tr.Done():
	default:
		t.Error("Done not closed")
	}
	if err := tr.Write(context.Background(), []byte("x")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	if _, err := tr.Read(context.Background()); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := Dial(context.Background(), wsURL(srv), time.Second, nil); err == nil {
		t.Error("expected error dialing a non-websocket endpoint")
	}
}
