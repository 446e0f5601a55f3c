// Package response defines the JSON envelope of API replies.
package response

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK returns a success envelope.
func OK() Response {
	return Response{Status: StatusOK}
}

// Error returns an error envelope with the given message.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}
