package preprocess

// DecodeError is returned when the uploaded bytes are not a readable image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResizeError is returned when an image cannot be resized to the model input.
type ResizeError struct {
	Err error
}

func (e *ResizeError) Error() string {
	return "failed to resize image: " + e.Err.Error()
}

func (e *ResizeError) Unwrap() error { return e.Err }
