package control

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/revalidate"
)

// Revalidator performs revalidation requests. Authorize also guards the
// keys listing.
type Revalidator interface {
	Authorize(secret string) error
	Revalidate(path, secret string) (*revalidate.Result, error)
}

// Server answers control requests.
type Server struct {
	rv   Revalidator
	keys func() []string
}

// NewServer returns a Server. keys lists cached keys and may be nil.
func NewServer(rv Revalidator, keys func() []string) *Server {
	return &Server{rv: rv, keys: keys}
}

// Listen opens the control socket at path, replacing a stale socket file.
// The socket is only accessible to the current user.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "failed to create socket directory for %s", path)
	}
	_ = os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "failed to listen on %s", path)
	}
	_ = os.Chmod(path, 0o600)
	return l, nil
}

// Serve accepts connections until ctx is done or l is closed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warnf("control: accept failed: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		_ = enc.Encode(s.handle(req))
	}
}

func (s *Server) handle(req Request) Response {
	switch req.Op {
	case OpRevalidate:
		res, err := s.rv.Revalidate(req.Path, req.Secret)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Result: res}
	case OpKeys:
		if err := s.rv.Authorize(req.Secret); err != nil {
			logger.Warnf("control: rejected keys request: %v", err)
			return errorResponse(err)
		}
		if s.keys == nil {
			return Response{OK: true, Keys: []string{}}
		}
		return Response{OK: true, Keys: s.keys()}
	default:
		return errorResponse(errors.Newf(errors.CodeInvalidInput, "unknown op %q", req.Op))
	}
}
