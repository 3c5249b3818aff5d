package donatehub

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrMissingRequired = Statusf(400, "Missing required fields")
	ErrNotFound        = Statusf(404, "Not found")

	// Perk purchase taxonomy. These are the only errors the purchase
	// coordinator surfaces before or instead of mutating anything.
	ErrPerkNotFound           = Statusf(404, "PERK_NOT_FOUND")
	ErrShippingDataMissing    = Statusf(400, "SHIPPING_DATA_MISSING")
	ErrPerkNotAvailableInFund = Statusf(400, "PERK_NOT_AVAILABLE_IN_FUND")
	ErrInsufficientBalance    = Statusf(400, "INSUFFICIENT_BALANCE")
)

var _ error = &statusError{}

type statusError struct {
	Code int
	Text string

	WrappedError error
}

func (s *statusError) LogValue() slog.Value {
	if s == nil {
		return slog.Value{}
	}
	return slog.StringValue(s.Text)
}

func (s *statusError) Error() string {
	return s.Text
}

func (s *statusError) Unwrap() error {
	return s.WrappedError
}

func (s *statusError) Is(target error) bool {
	if err, ok := target.(*statusError); ok {
		return err.Text == s.Text
	}
	return false
}

func Statusf(status int, format string, args ...any) error {
	return &statusError{Code: status, Text: fmt.Sprintf(format, args...)}
}

func WrapError(err error, text string) error {
	return &statusError{Code: ErrorCode(err), Text: text, WrappedError: err}
}

func ErrorCode(err error) int {
	if err == nil {
		return 200
	}
	var err2 *statusError
	if errors.As(err, &err2) {
		return err2.Code
	}
	return 500
}
