package model

// GenericErrorMessage is shown when a failure carries no server message.
const GenericErrorMessage = "An unexpected error occurred"

// Response is the envelope every backend endpoint answers with.
type Response[T any] struct {
	Success int    `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta identifies the endpoint that produced a response.
type Meta struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
}

// OK reports whether the backend flagged the response as successful.
func (r Response[T]) OK() bool {
	return r.Success == 1
}
