// Package control is a local admin channel for a running server: JSON
// requests over a Unix domain socket, one request and one response at a
// time per connection.
package control

import (
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/revalidate"
)

// Operations understood by the server.
const (
	OpRevalidate = "revalidate"
	OpKeys       = "keys"
)

// Request is one control call. Both ops carry the revalidation secret.
type Request struct {
	Op     string `json:"op"` // "revalidate" | "keys"
	Path   string `json:"path,omitempty"`
	Secret string `json:"secret,omitempty"`
}

type Response struct {
	OK     bool                  `json:"ok"`
	Result *revalidate.Result    `json:"result,omitempty"`
	Keys   []string              `json:"keys,omitempty"`
	Error  *errors.ErrorResponse `json:"error,omitempty"`
}

// errorResponse reports err without its cause chain.
func errorResponse(err error) Response {
	return Response{OK: false, Error: errors.ToJSON(err)}
}

// asError rebuilds a coded error from a failed response.
func (r Response) asError() error {
	if r.Error == nil {
		return errors.New(errors.CodeInternal, "control request failed")
	}
	return errors.New(errors.ErrorCode(r.Error.Code), r.Error.Message)
}
