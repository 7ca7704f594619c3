package entry

import "errors"

var (
	// ErrInvalidArgument is returned when a required argument (entry, attribute
	// name, transcoder for non-empty values) is missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTranscode is returned when a value cannot be converted between its
	// domain and wire representations, typically because the transcoder does not
	// match the stored attribute (binary vs. text).
	ErrTranscode = errors.New("transcode failed")
)
