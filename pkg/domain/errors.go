package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrMethodNotFound = errors.New("method not found")
	ErrCallDenied     = errors.New("call denied")
	ErrUnknownBundle  = errors.New("unknown bundle")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// MethodNotFoundError reports a call to a method the object does not have.
type MethodNotFoundError struct {
	Type   string
	Method string
}

func (e *MethodNotFoundError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("method not found: %s", e.Method)
	}
	return fmt.Sprintf("method not found: %s.%s", e.Type, e.Method)
}

func (e *MethodNotFoundError) Is(target error) bool {
	return target == ErrMethodNotFound
}

// CallDeniedError is returned by hooks that refuse to let a call proceed.
type CallDeniedError struct {
	Method string
	Reason string
}

func (e *CallDeniedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("call denied: %s", e.Method)
	}
	return fmt.Sprintf("call denied: %s: %s", e.Method, e.Reason)
}

func (e *CallDeniedError) Is(target error) bool {
	return target == ErrCallDenied
}

// UnknownBundleError reports a bundle name that no catalog entry resolves.
type UnknownBundleError struct {
	Name string
}

func (e *UnknownBundleError) Error() string {
	return fmt.Sprintf("unknown bundle: %s", e.Name)
}

func (e *UnknownBundleError) Is(target error) bool {
	return target == ErrUnknownBundle
}

// IsMethodNotFound checks if the error indicates a missing method
func IsMethodNotFound(err error) bool {
	return errors.Is(err, ErrMethodNotFound)
}

// IsCallDenied checks if the error indicates an intercepted call was refused
func IsCallDenied(err error) bool {
	return errors.Is(err, ErrCallDenied)
}
