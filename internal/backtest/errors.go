package backtest

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal backtest failures.
type ErrorKind string

// Error kinds surfaced to callers. Every terminal failure carries one.
const (
	KindConfiguration     ErrorKind = "configuration"
	KindDataUnavailable   ErrorKind = "data_unavailable"
	KindStrategyExecution ErrorKind = "strategy_execution"
	KindCancelled         ErrorKind = "cancelled"
)

// Error is a classified backtest error. It wraps an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports an invalid config or parameter range.
func NewConfigurationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewDataUnavailableError reports a failed or misaligned data fetch.
func NewDataUnavailableError(message string, err error) *Error {
	return &Error{Kind: KindDataUnavailable, Message: message, Err: err}
}

// NewStrategyExecutionError reports a strategy failure inside the bar loop.
func NewStrategyExecutionError(message string, err error) *Error {
	return &Error{Kind: KindStrategyExecution, Message: message, Err: err}
}

// NewCancelledError reports a caller-requested cancellation.
func NewCancelledError(message string) *Error {
	return &Error{Kind: KindCancelled, Message: message}
}

// IsKind reports whether err is a backtest error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var bt *Error
	if errors.As(err, &bt) {
		return bt.Kind == kind
	}
	return false
}
