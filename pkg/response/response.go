package response

// Response represents a standard API response format
type Response struct {
	Status     string         `json:"status"`      // "success" or "error"
	StatusCode int            `json:"status_code"` // HTTP status code
	Data       interface{}    `json:"data,omitempty"`
	Meta       interface{}    `json:"meta,omitempty"`
	Error      string         `json:"error,omitempty"`
	Code       string         `json:"code,omitempty"` // machine readable error kind
	Details    map[string]any `json:"details,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paged returns a success response carrying paging metadata
func Paged(statusCode int, data interface{}, meta interface{}) Response {
	r := Success(statusCode, data)
	r.Meta = meta
	return r
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// Fail returns an error response tagged with a kind and the request details a
// client needs to retry.
func Fail(statusCode int, code, err string, details map[string]any) Response {
	r := Error(statusCode, err)
	r.Code = code
	r.Details = details
	return r
}
