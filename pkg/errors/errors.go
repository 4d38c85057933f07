package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunchConfigRequired = errors.New("launch config is required")
	ErrModelRequired        = errors.New("a model identifier is required")
	ErrDeviceListRequired   = errors.New("no devices specified, at least 1 device is required")
	ErrLogDirRequired       = errors.New("a log directory is required")
	ErrNoRuntime            = errors.New("you must enable at least 1 server runtime")
	ErrNotStarted           = errors.New("no server process for slot")
	ErrMissingStatusInfo    = errors.New("status is not defined")
)

// ConfigError wraps a fatal configuration problem. A slot that fails with a
// ConfigError is never retried.
type ConfigError struct {
	Err error
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Err)
}

// Unwrap returns the wrapped error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps the supplied error as fatal configuration failure.
func NewConfigError(err error) error {
	return &ConfigError{Err: err}
}

// IsConfigError returns true if any error in the chain is a ConfigError.
func IsConfigError(err error) bool {
	configErr := &ConfigError{}

	return errors.As(err, &configErr)
}

type portOutOfRangeError struct {
	device int
	port   int
}

// Error returns the error message.
func (e portOutOfRangeError) Error() string {
	return fmt.Sprintf("port %d for device %d is outside the valid port range", e.port, e.device)
}

func NewPortOutOfRange(device, port int) error {
	return NewConfigError(portOutOfRangeError{
		device: device,
		port:   port,
	})
}

type invalidDeviceError struct {
	device int
	reason string
}

// Error returns the error message.
func (e invalidDeviceError) Error() string {
	return fmt.Sprintf("device %d is invalid: %s", e.device, e.reason)
}

func NewDuplicateDevice(device int) error {
	return NewConfigError(invalidDeviceError{
		device: device,
		reason: "listed more than once",
	})
}

func NewNegativeDevice(device int) error {
	return NewConfigError(invalidDeviceError{
		device: device,
		reason: "device ids start at 0",
	})
}

type binaryNotFoundError struct {
	bin string
	err error
}

// Error returns the error message.
func (e binaryNotFoundError) Error() string {
	return fmt.Sprintf("server binary %s not found: %s", e.bin, e.err)
}

// Unwrap returns the wrapped error.
func (e binaryNotFoundError) Unwrap() error {
	return e.err
}

func NewBinaryNotFound(bin string, err error) error {
	return NewConfigError(binaryNotFoundError{
		bin: bin,
		err: err,
	})
}

type unknownProviderError struct {
	provider string
}

// Error returns the error message.
func (e unknownProviderError) Error() string {
	return fmt.Sprintf("server runtime %s is not enabled", e.provider)
}

func NewUnknownProvider(provider string) error {
	return NewConfigError(unknownProviderError{provider: provider})
}

type restartsExceededError struct {
	device   int
	restarts int
}

// Error returns the error message.
func (e restartsExceededError) Error() string {
	return fmt.Sprintf("server for device %d exceeded %d restarts", e.device, e.restarts)
}

func NewRestartsExceeded(device, restarts int) error {
	return restartsExceededError{
		device:   device,
		restarts: restarts,
	}
}

type fleetFailedError struct {
	devices []int
}

// Error returns the error message.
func (e fleetFailedError) Error() string {
	failed := make([]string, 0, len(e.devices))
	for _, device := range e.devices {
		failed = append(failed, fmt.Sprintf("gpu%d", device))
	}

	return fmt.Sprintf("%d slot(s) failed permanently: %s", len(e.devices), strings.Join(failed, ", "))
}

func NewFleetFailed(devices []int) error {
	return fleetFailedError{devices: devices}
}
