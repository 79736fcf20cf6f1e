// internal/domain/liveness/response.go
package liveness

// Response is the answer carried by a liveness token submission.
type Response string

const (
	ResponseAlive    Response = "alive"
	ResponseDeceased Response = "deceased"
)

// Valid reports whether the value is one of the two known responses.
func (r Response) Valid() bool {
	return r == ResponseAlive || r == ResponseDeceased
}
