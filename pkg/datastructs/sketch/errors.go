package sketch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when a width, depth, error bound or
	// probability is outside its accepted range.
	ErrInvalidParameter = errors.New("sketch: invalid parameter")

	// ErrInvalidSignature is returned when a buffer does not hold a sketch in a
	// format this package understands.
	ErrInvalidSignature = errors.New("sketch: invalid signature")

	// ErrCorruptData is returned when a buffer carries the right signature but
	// its header or length does not describe a well-formed sketch.
	ErrCorruptData = errors.New("sketch: corrupt data")

	// ErrAllocationFailure is returned when the backing buffer cannot be sized.
	ErrAllocationFailure = errors.New("sketch: could not size buffer")
)

// Parameter names carried by InvalidParamError.
const (
	ParamWidth       = "width"
	ParamDepth       = "depth"
	ParamError       = "error"
	ParamProbability = "probability"
)

// InvalidParamError names the parameter that was rejected. It matches
// ErrInvalidParameter under errors.Is.
type InvalidParamError struct {
	Param  string
	Detail string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidParameter, e.Param, e.Detail)
}

func (e *InvalidParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func paramErr(param, format string, args ...any) error {
	return &InvalidParamError{Param: param, Detail: fmt.Sprintf(format, args...)}
}
