package mux

// Result is the outcome of handling a single message.
type Result struct {
	Success  bool
	Response string
	Error    string

	// Data carries handler-specific payload keys.
	Data map[string]any

	// ForwardedMessages holds next-stage messages emitted by workflow
	// orchestration. The router does not dispatch them; the caller decides
	// whether to re-route (see Router.RouteForwards).
	ForwardedMessages []*Message
}

// Ok builds a successful result with the given response text.
func Ok(response string) *Result {
	return &Result{Success: true, Response: response}
}

// Fail builds a failed result with the given error text.
func Fail(reason string) *Result {
	return &Result{Success: false, Error: reason}
}

// SetData writes a payload key, allocating the map on first use.
func (r *Result) SetData(key string, value any) {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
}
