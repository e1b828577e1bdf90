package models

import "fmt"

// MethodShape classifies a method's result list. It selects the wrapping
// template used by decorators and interceptors.
type MethodShape int

const (
	// ShapeVoid has no results.
	ShapeVoid MethodShape = iota
	// ShapeValue is any result list that does not end in error.
	ShapeValue
	// ShapeTask has error as its only result.
	ShapeTask
	// ShapeGenericTask carries one or more values followed by error.
	ShapeGenericTask
)

// String returns the string representation of the shape
func (s MethodShape) String() string {
	switch s {
	case ShapeVoid:
		return "Void"
	case ShapeValue:
		return "Value"
	case ShapeTask:
		return "Task"
	case ShapeGenericTask:
		return "GenericTask"
	default:
		return fmt.Sprintf("MethodShape(%d)", int(s))
	}
}

// Fallible reports whether the call completes through a trailing error the
// template must observe before the span closes.
func (s MethodShape) Fallible() bool {
	return s == ShapeTask || s == ShapeGenericTask
}

// Returns reports whether the generated body ends in a return statement.
func (s MethodShape) Returns() bool {
	return s != ShapeVoid
}

// UnitKind identifies the component that produced a generated unit
type UnitKind int

const (
	UnitDecorator UnitKind = iota
	UnitTypeMap
	UnitInterceptor
	UnitGlue
	UnitDefaultSource
)

// String returns the string representation of the unit kind
func (k UnitKind) String() string {
	switch k {
	case UnitDecorator:
		return "decorator"
	case UnitTypeMap:
		return "typemap"
	case UnitInterceptor:
		return "interceptor"
	case UnitGlue:
		return "glue"
	case UnitDefaultSource:
		return "default-source"
	default:
		return "unknown"
	}
}

// Severity of an engine diagnostic
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// ErrorType represents different types of generator errors
type ErrorType int

const (
	ErrorTypeValidation ErrorType = iota
	ErrorTypeFileSystem
	ErrorTypeLoad
	ErrorTypeGeneration
	ErrorTypeCache
	ErrorTypeConfiguration
)

// String returns the string representation of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeFileSystem:
		return "filesystem"
	case ErrorTypeLoad:
		return "load"
	case ErrorTypeGeneration:
		return "generation"
	case ErrorTypeCache:
		return "cache"
	case ErrorTypeConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}
