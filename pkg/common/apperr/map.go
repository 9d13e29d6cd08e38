package apperr

import (
	"errors"
	"strings"

	"github.com/RedisLabsModules/countminsketch/pkg/datastructs/sketch"
	"github.com/RedisLabsModules/countminsketch/pkg/store"
)

// Reply messages. Clients match on these, so they must not change.
const (
	MsgKeyExists      = "ERR key already exists"
	MsgWrongType      = "WRONGTYPE Operation against a key holding the wrong kind of value"
	MsgInvalidSig     = "ERR invalid signature"
	MsgTruncateFailed = "ERR could not truncate key to required size"
	MsgNotInteger     = "ERR value is not a valid integer"
	MsgNotFloat       = "ERR value is not a valid float"
	MsgInvalidParam   = "ERR invalid parameter"
	MsgInternal       = "ERR internal error"
)

// InvalidParam returns the InvalidParameter error for a named parameter,
// e.g. "ERR invalid width".
func InvalidParam(param string) *AppError {
	return New(InvalidParameter, "ERR invalid "+param)
}

// ArityError reports a wrong number of arguments for cmd.
func ArityError(cmd string) *AppError {
	return New(WrongArity, "ERR wrong number of arguments for '"+strings.ToLower(cmd)+"' command")
}

// UnknownCommandError reports a command name nothing is registered under.
func UnknownCommandError(cmd string) *AppError {
	return New(UnknownCommand, "ERR unknown command '"+cmd+"'")
}

// FromError maps errors from the sketch and store packages onto kinds.
// AppErrors pass through unchanged; anything unrecognized becomes Internal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}

	var pe *sketch.InvalidParamError
	switch {
	case errors.As(err, &pe):
		return Wrap(err, InvalidParameter, "ERR invalid "+pe.Param)
	case errors.Is(err, sketch.ErrInvalidParameter):
		return Wrap(err, InvalidParameter, MsgInvalidParam)
	case errors.Is(err, sketch.ErrInvalidSignature), errors.Is(err, sketch.ErrCorruptData):
		return Wrap(err, CorruptOrIncompatibleFormat, MsgInvalidSig)
	case errors.Is(err, sketch.ErrAllocationFailure), errors.Is(err, store.ErrValueTooLarge):
		return Wrap(err, AllocationFailure, MsgTruncateFailed)
	case errors.Is(err, store.ErrWrongType):
		return Wrap(err, WrongValueType, MsgWrongType)
	default:
		return Wrap(err, Internal, MsgInternal)
	}
}

// Reply renders err as the single-line error a client receives.
func Reply(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Message
}
