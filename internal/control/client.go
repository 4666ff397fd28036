package control

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/revalidate"
)

const dialTimeout = 500 * time.Millisecond

// Client talks to a Server over its Unix socket.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return Response{}, errors.Wrapf(err, errors.CodeNetwork, "failed to connect to %s", c.socketPath)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, errors.Wrap(err, errors.CodeNetwork, "failed to send control request")
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, errors.Wrap(err, errors.CodeNetwork, "failed to read control response")
	}
	if !resp.OK {
		return resp, resp.asError()
	}
	return resp, nil
}

// Revalidate asks the server to revalidate path.
func (c *Client) Revalidate(ctx context.Context, path, secret string) (*revalidate.Result, error) {
	resp, err := c.do(ctx, Request{Op: OpRevalidate, Path: path, Secret: secret})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Keys lists the keys currently cached by the server.
func (c *Client) Keys(ctx context.Context, secret string) ([]string, error) {
	resp, err := c.do(ctx, Request{Op: OpKeys, Secret: secret})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}
