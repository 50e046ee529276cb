package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/brianly1003/grouppilot/internal/rpc/client"
	"github.com/brianly1003/grouppilot/internal/rpc/transport"
)

var (
	controlAddr    string
	controlTimeout time.Duration
)

// controlURL returns the control API endpoint of the running daemon.
// --addr wins over the server section of the config.
func controlURL(cfg *config.Config, userFilter string) string {
	host := controlAddr
	if host == "" {
		h := cfg.Server.Host
		if h == "" || h == "0.0.0.0" || h == "::" {
			h = "127.0.0.1"
		}
		host = net.JoinHostPort(h, strconv.Itoa(cfg.Server.Port))
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/rpc"}
	if userFilter != "" {
		u.RawQuery = url.Values{"user_id": {userFilter}}.Encode()
	}
	return u.String()
}

// dialControl connects to the daemon's control API. onNotify may be nil.
func dialControl(ctx context.Context, userFilter string, onNotify client.NotificationHandler) (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	endpoint := controlURL(cfg, userFilter)
	var header http.Header
	if cfg.Server.AuthToken != "" {
		header = http.Header{"Authorization": {"Bearer " + cfg.Server.AuthToken}}
	}
	t, err := transport.Dial(ctx, endpoint, 5*time.Second, header)
	if err != nil {
		return nil, fmt.Errorf("grouppilot is not reachable at %s (is it running with server.enabled?): %w", endpoint, err)
	}
	return client.New(t, onNotify), nil
}

// callControl makes one control API call and closes the connection.
func callControl(method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	c, err := dialControl(ctx, "", nil)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Call(ctx, method, params, result)
}
