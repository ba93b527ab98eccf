// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the error taxonomy shared by every lexguard
// component. Errors carry a Kind, the component and operation that raised
// them, and the underlying cause, so callers can branch with errors.Is
// against the exported sentinels or errors.As against *Error.
//
// Usage:
//
//	if err := store.Set(ctx, "model", v, true); errors.Is(err, errors.ErrValidation) {
//	    // reject the request, nothing was applied
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an error for handling purposes.
type Kind int

const (
	// KindValidation marks malformed configuration or input. Nothing was
	// mutated when this kind is returned.
	KindValidation Kind = iota
	// KindBackendUnavailable marks an unreachable or unloaded inference backend.
	KindBackendUnavailable
	// KindModelRequirement marks a model that fails the minimum capability checks.
	KindModelRequirement
	// KindInference marks a single failed inference call.
	KindInference
	// KindPluginContract marks a plugin with an incomplete capability set.
	KindPluginContract
	// KindConfigurationPersistence marks a failed durable write. Always soft.
	KindConfigurationPersistence
	// KindAnalysis marks a terminal analysis failure after every tier failed.
	KindAnalysis
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindModelRequirement:
		return "model_requirement"
	case KindInference:
		return "inference"
	case KindPluginContract:
		return "plugin_contract"
	case KindConfigurationPersistence:
		return "configuration_persistence"
	case KindAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// Sentinels matched by (*Error).Is, one per Kind.
var (
	ErrValidation               = stderrors.New("validation failed")
	ErrBackendUnavailable       = stderrors.New("inference backend unavailable")
	ErrModelRequirement         = stderrors.New("model requirement not met")
	ErrInference                = stderrors.New("inference failed")
	ErrPluginContract           = stderrors.New("plugin contract incomplete")
	ErrConfigurationPersistence = stderrors.New("configuration persistence failed")
	ErrAnalysis                 = stderrors.New("analysis failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindBackendUnavailable:
		return ErrBackendUnavailable
	case KindModelRequirement:
		return ErrModelRequirement
	case KindInference:
		return ErrInference
	case KindPluginContract:
		return ErrPluginContract
	case KindConfigurationPersistence:
		return ErrConfigurationPersistence
	case KindAnalysis:
		return ErrAnalysis
	default:
		return nil
	}
}

// Error is a classified error raised by a lexguard component.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Err       error
}

// Error implements the error interface following the pattern
// "component.operation: kind: cause".
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Component != "" {
		sb.WriteString(e.Component)
		if e.Operation != "" {
			sb.WriteString(".")
			sb.WriteString(e.Operation)
		}
		sb.WriteString(": ")
	}
	if s := e.Kind.sentinel(); s != nil {
		sb.WriteString(s.Error())
	} else {
		sb.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, component, operation string, err error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Err: err}
}

// Validation returns a KindValidation error with a formatted cause.
func Validation(component, operation, format string, args ...any) error {
	return newError(KindValidation, component, operation, fmt.Errorf(format, args...))
}

// BackendUnavailable wraps err as KindBackendUnavailable.
func BackendUnavailable(component, operation string, err error) error {
	return newError(KindBackendUnavailable, component, operation, err)
}

// ModelRequirement returns a KindModelRequirement error with a formatted cause.
func ModelRequirement(component, operation, format string, args ...any) error {
	return newError(KindModelRequirement, component, operation, fmt.Errorf(format, args...))
}

// Inference wraps err as KindInference.
func Inference(component, operation string, err error) error {
	return newError(KindInference, component, operation, err)
}

// PluginContract returns a KindPluginContract error with a formatted cause.
func PluginContract(component, operation, format string, args ...any) error {
	return newError(KindPluginContract, component, operation, fmt.Errorf(format, args...))
}

// Persistence wraps err as KindConfigurationPersistence.
func Persistence(component, operation string, err error) error {
	return newError(KindConfigurationPersistence, component, operation, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether err may succeed on a later attempt. Inference
// and backend availability failures are transient; everything else, and
// unclassified errors, are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindInference || kind == KindBackendUnavailable
}

// Wrap adds context to err following "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// Is and As re-export the standard library helpers so callers importing this
// package under its default name keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is stderrors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New is stderrors.New.
func New(text string) error { return stderrors.New(text) }
