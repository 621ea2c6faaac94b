// Package ormerr defines the error kinds raised by the entity repository.
//
// Every validation failure is detected before any query is issued and is
// reported as an *Error carrying a Code. Callers match kinds with errors.Is
// against the exported sentinels:
//
//	if errors.Is(err, ormerr.ErrUnrecognizedField) { ... }
//
// Execution failures are wrapped in CodeQueryExecutionFailed; the driver
// error stays reachable through errors.Unwrap.
package ormerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes repository errors.
type Code string

const (
	// CodeUnrecognizedField indicates a criteria or ordering key that is not
	// a mapped field or association of the entity.
	CodeUnrecognizedField Code = "UNRECOGNIZED_FIELD"

	// CodeUnrecognizedIdentifierField indicates an identifier map key that is
	// not part of the entity's primary key.
	CodeUnrecognizedIdentifierField Code = "UNRECOGNIZED_IDENTIFIER_FIELD"

	// CodeMissingIdentifierField indicates an identifier map missing a key field.
	CodeMissingIdentifierField Code = "MISSING_IDENTIFIER_FIELD"

	// CodeSearchByInverseSide indicates a search on an inverse-side association.
	CodeSearchByInverseSide Code = "SEARCH_BY_INVERSE_SIDE_ASSOCIATION"

	// CodeOrderByInverseSide indicates ordering by an inverse-side association.
	CodeOrderByInverseSide Code = "ORDER_BY_INVERSE_SIDE_ASSOCIATION"

	// CodeInvalidOrientation indicates an ordering direction other than ASC/DESC.
	CodeInvalidOrientation Code = "INVALID_ORIENTATION"

	// CodeMissingVersionField indicates an optimistic lock on an unversioned type.
	CodeMissingVersionField Code = "MISSING_VERSION_FIELD"

	// CodeOptimisticLockMismatch indicates the loaded version differs from the
	// version the caller expected.
	CodeOptimisticLockMismatch Code = "OPTIMISTIC_LOCK_MISMATCH"

	// CodeTransactionRequired indicates a pessimistic lock outside a transaction.
	CodeTransactionRequired Code = "TRANSACTION_REQUIRED"

	// CodeMissingArgument indicates a dynamic shortcut called without a value.
	CodeMissingArgument Code = "MISSING_ARGUMENT"

	// CodeInvalidArgument indicates a malformed positional argument, limit or offset.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeUnknownDynamicMethod indicates a shortcut name with no known verb prefix.
	CodeUnknownDynamicMethod Code = "UNKNOWN_DYNAMIC_METHOD"

	// CodeInvalidOperand indicates an operand the field cannot be compared with.
	CodeInvalidOperand Code = "INVALID_OPERAND"

	// CodeUnknownEntityType indicates a type name the metadata source does not know.
	CodeUnknownEntityType Code = "UNKNOWN_ENTITY_TYPE"

	// CodeQueryExecutionFailed wraps a failure reported by the database.
	CodeQueryExecutionFailed Code = "QUERY_EXECUTION_FAILED"

	// CodeInvalidRepository indicates a repository name the manager cannot
	// build an entity repository from.
	CodeInvalidRepository Code = "INVALID_REPOSITORY"
)

// Sentinels for errors.Is matching. Only the Code is compared.
var (
	ErrUnrecognizedField           = &Error{Code: CodeUnrecognizedField}
	ErrUnrecognizedIdentifierField = &Error{Code: CodeUnrecognizedIdentifierField}
	ErrMissingIdentifierField      = &Error{Code: CodeMissingIdentifierField}
	ErrSearchByInverseSide         = &Error{Code: CodeSearchByInverseSide}
	ErrOrderByInverseSide          = &Error{Code: CodeOrderByInverseSide}
	ErrInvalidOrientation          = &Error{Code: CodeInvalidOrientation}
	ErrMissingVersionField         = &Error{Code: CodeMissingVersionField}
	ErrOptimisticLockMismatch      = &Error{Code: CodeOptimisticLockMismatch}
	ErrTransactionRequired         = &Error{Code: CodeTransactionRequired}
	ErrMissingArgument             = &Error{Code: CodeMissingArgument}
	ErrInvalidArgument             = &Error{Code: CodeInvalidArgument}
	ErrUnknownDynamicMethod        = &Error{Code: CodeUnknownDynamicMethod}
	ErrInvalidOperand              = &Error{Code: CodeInvalidOperand}
	ErrUnknownEntityType           = &Error{Code: CodeUnknownEntityType}
	ErrQueryExecutionFailed        = &Error{Code: CodeQueryExecutionFailed}
	ErrInvalidRepository           = &Error{Code: CodeInvalidRepository}
)

// Error is a categorized repository error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Entity names the entity type involved, when known.
	Entity string

	// Field names the offending field or method, when known.
	Field string

	// Fields lists every offending name for multi-field errors, sorted.
	Fields []string

	// Err is the underlying cause (driver errors for execution failures).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so the package sentinels work
// with errors.Is regardless of message or context fields.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UnrecognizedField reports a criteria or ordering key that does not resolve.
func UnrecognizedField(entity, field string) *Error {
	return &Error{
		Code:    CodeUnrecognizedField,
		Message: fmt.Sprintf("Unrecognized field: %s#%s", entity, field),
		Entity:  entity,
		Field:   field,
	}
}

// UnrecognizedIdentifierFields reports identifier map keys outside the primary key.
func UnrecognizedIdentifierFields(entity string, fields []string) *Error {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return &Error{
		Code:    CodeUnrecognizedIdentifierField,
		Message: fmt.Sprintf("Unrecognized identifier fields: '%s' are not present on class '%s'", strings.Join(sorted, "', '"), entity),
		Entity:  entity,
		Fields:  sorted,
	}
}

// MissingIdentifierField reports an identifier map without a key field.
func MissingIdentifierField(entity, field string) *Error {
	return &Error{
		Code:    CodeMissingIdentifierField,
		Message: fmt.Sprintf("The identifier %s is missing for a query of %s", field, entity),
		Entity:  entity,
		Field:   field,
	}
}

// SearchByInverseSide reports a search on an inverse-side association.
func SearchByInverseSide(entity, field string) *Error {
	return &Error{
		Code: CodeSearchByInverseSide,
		Message: fmt.Sprintf("You cannot search for the association field '%s#%s', because it is the inverse side of an association. "+
			"Find methods only work on owning side associations.", entity, field),
		Entity: entity,
		Field:  field,
	}
}

// OrderByInverseSide reports ordering by an inverse-side association.
func OrderByInverseSide(entity, field string) *Error {
	return &Error{
		Code: CodeOrderByInverseSide,
		Message: fmt.Sprintf("Invalid order by: you cannot order by the association field '%s#%s', because it is the inverse side of an association.",
			entity, field),
		Entity: entity,
		Field:  field,
	}
}

// InvalidOrientation reports a direction other than ASC or DESC.
func InvalidOrientation(entity, field string) *Error {
	return &Error{
		Code:    CodeInvalidOrientation,
		Message: fmt.Sprintf("Invalid order by orientation specified for %s#%s", entity, field),
		Entity:  entity,
		Field:   field,
	}
}

// MissingVersionField reports an optimistic lock request on an unversioned type.
func MissingVersionField(entity string) *Error {
	return &Error{
		Code:    CodeMissingVersionField,
		Message: fmt.Sprintf("Cannot obtain optimistic lock on unversioned entity %s", entity),
		Entity:  entity,
	}
}

// OptimisticLockMismatch reports a version that differs from the expected one.
func OptimisticLockMismatch(entity string, expected, actual int64) *Error {
	return &Error{
		Code:    CodeOptimisticLockMismatch,
		Message: fmt.Sprintf("The optimistic lock failed, version %d was expected, but is actually %d", expected, actual),
		Entity:  entity,
	}
}

// TransactionRequired reports a pessimistic lock requested outside a transaction.
func TransactionRequired(entity string) *Error {
	return &Error{
		Code:    CodeTransactionRequired,
		Message: "An open transaction is required for this operation",
		Entity:  entity,
	}
}

// MissingArgument reports a dynamic shortcut invoked without its value argument.
func MissingArgument(entity, method string) *Error {
	return &Error{
		Code:    CodeMissingArgument,
		Message: fmt.Sprintf("You need to pass a parameter to '%s'", method),
		Entity:  entity,
		Field:   method,
	}
}

// InvalidArgument reports a malformed argument.
func InvalidArgument(entity, message string) *Error {
	return &Error{
		Code:    CodeInvalidArgument,
		Message: message,
		Entity:  entity,
	}
}

// UnknownDynamicMethod reports a shortcut without a findBy/findOneBy/countBy prefix.
func UnknownDynamicMethod(entity, method string) *Error {
	return &Error{
		Code:    CodeUnknownDynamicMethod,
		Message: fmt.Sprintf("Undefined method '%s'. The method name must start with either findBy, findOneBy or countBy!", method),
		Entity:  entity,
		Field:   method,
	}
}

// InvalidOperand reports an operand the field cannot be compared with.
func InvalidOperand(entity, field, reason string) *Error {
	return &Error{
		Code:    CodeInvalidOperand,
		Message: fmt.Sprintf("Invalid operand for %s#%s: %s", entity, field, reason),
		Entity:  entity,
		Field:   field,
	}
}

// UnknownEntityType reports a type name missing from the metadata source.
func UnknownEntityType(name string) *Error {
	return &Error{
		Code:    CodeUnknownEntityType,
		Message: fmt.Sprintf("Unknown entity type '%s'", name),
		Entity:  name,
	}
}

// QueryExecutionFailed wraps a database failure without altering it.
func QueryExecutionFailed(entity string, err error) *Error {
	return &Error{
		Code:    CodeQueryExecutionFailed,
		Message: "query execution failed",
		Entity:  entity,
		Err:     err,
	}
}

// InvalidRepository reports a repository that is not registered or does not
// serve its entity type. entity may be empty for manager-wide defaults.
func InvalidRepository(entity, name, reason string) *Error {
	return &Error{
		Code:    CodeInvalidRepository,
		Message: fmt.Sprintf("Invalid repository '%s': %s. It must be a registered EntityRepository", name, reason),
		Entity:  entity,
		Field:   name,
	}
}
