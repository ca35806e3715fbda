package materialapi

// RequestError is the single failure kind of the backend calls. It covers
// non-2xx responses and transport failures alike; Error returns the text
// shown to the user unchanged.
type RequestError struct {
	Op      string
	Status  int // zero for transport failures
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
