package testasset

import "fmt"

// ParseError reports a test asset that could not be read or decoded. It
// carries the asset path so callers can log and skip the single asset
// without aborting a whole discovery pass.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
