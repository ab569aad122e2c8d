package mac

import (
	"errors"
	"fmt"
)

// Decode errors. Each malformed frame maps to exactly one of them.
var (
	ErrNotEnoughBytes          = errors.New("mac: not enough bytes")
	ErrInvalidFrameType        = errors.New("mac: invalid frame type")
	ErrSecurityNotSupported    = errors.New("mac: security not supported")
	ErrInvalidAddressMode      = errors.New("mac: invalid address mode")
	ErrAddressModeNotSupported = errors.New("mac: address mode not supported")
	ErrInvalidFrameVersion     = errors.New("mac: invalid frame version")
	ErrInvalidValue            = errors.New("mac: invalid value")
)

// AddressModeNotSupportedError reports a valid address mode that the frame
// type does not allow.
type AddressModeNotSupportedError struct {
	Mode AddressMode
}

func (e *AddressModeNotSupportedError) Error() string {
	return fmt.Sprintf("mac: address mode %s not supported", e.Mode)
}

func (e *AddressModeNotSupportedError) Is(target error) bool {
	return target == ErrAddressModeNotSupported
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidValue}, args...)...)
}

func short(what string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d, have %d", ErrNotEnoughBytes, what, need, have)
}

// Reason returns a short stable label for err, suitable for metric labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotEnoughBytes):
		return "not_enough_bytes"
	case errors.Is(err, ErrInvalidFrameType):
		return "invalid_frame_type"
	case errors.Is(err, ErrSecurityNotSupported):
		return "security_not_supported"
	case errors.Is(err, ErrInvalidAddressMode):
		return "invalid_address_mode"
	case errors.Is(err, ErrAddressModeNotSupported):
		return "address_mode_not_supported"
	case errors.Is(err, ErrInvalidFrameVersion):
		return "invalid_frame_version"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	default:
		return "other"
	}
}
