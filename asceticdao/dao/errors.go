package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

var (
	ErrInvalidQuery       = query.ErrInvalidQuery
	ErrRecordNotFound     = errors.New("record not found")
	ErrDatabaseOperation  = errors.New("database operation failed")
	ErrDatabaseConnection = errors.New("database connection failed")

	ErrMultipleRecordsFound = errors.New("multiple records found")
	ErrNotInitialized       = errors.New("dao is not initialized")
	ErrClosed               = errors.New("dao is closed")
)

// Op names identify operations in errors, logs and metrics.
const (
	OpInit           = "init"
	OpClose          = "close"
	OpGetByID        = "get_by_id"
	OpGetByField     = "get_by_field"
	OpGetMany        = "get_many"
	OpCreate         = "create"
	OpUpdate         = "update"
	OpUpdateOrCreate = "update_or_create"
	OpDelete         = "delete"
	OpBulkCreate     = "bulk_create"
	OpBulkUpdate     = "bulk_update"
	OpBulkDelete     = "bulk_delete"
	OpCount          = "count"
	OpExists         = "exists"
)

var failureMessages = map[string]string{
	OpGetByID:        "failed to fetch record",
	OpGetByField:     "failed to fetch record",
	OpGetMany:        "failed to fetch records",
	OpCreate:         "failed to create record",
	OpUpdate:         "failed to update record",
	OpUpdateOrCreate: "failed to update or create record",
	OpDelete:         "failed to delete record",
	OpBulkCreate:     "failed to create records",
	OpBulkUpdate:     "failed to update records",
	OpBulkDelete:     "failed to delete records",
	OpCount:          "failed to count records",
	OpExists:         "failed to check if record exists",
}

type RecordNotFoundError struct {
	Model string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record not found in %s", e.Model)
}

func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// DatabaseOperationError hides the engine error behind its message.
type DatabaseOperationError struct {
	Op         string
	Model      string
	Message    string
	Constraint bool
	kind       error
}

func (e *DatabaseOperationError) Error() string {
	return e.Message
}

func (e *DatabaseOperationError) Is(target error) bool {
	return target == ErrDatabaseOperation || (e.kind != nil && target == e.kind)
}

type DatabaseConnectionError struct {
	Op      string
	Message string
}

func (e *DatabaseConnectionError) Error() string {
	return e.Message
}

func (e *DatabaseConnectionError) Is(target error) bool {
	return target == ErrDatabaseConnection
}

func connectionError(op string, cause any) error {
	verb := "initialize"
	if op == OpClose {
		verb = "close"
	}
	return &DatabaseConnectionError{
		Op:      op,
		Message: fmt.Sprintf("failed to %s connection: %v", verb, cause),
	}
}

func stateError(op, model string, kind error) error {
	return &DatabaseOperationError{
		Op:      op,
		Model:   model,
		Message: fmt.Sprintf("%s: %v", failureMessages[op], kind),
		kind:    kind,
	}
}

// mapError translates a storage failure into the public error types.
func mapError(op, model string, err error) error {
	if err == nil {
		return nil
	}
	message := failureMessages[op]
	switch {
	case errors.Is(err, query.ErrInvalidQuery):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return &RecordNotFoundError{Model: model}
	case errors.Is(err, storage.ErrConstraint):
		return &DatabaseOperationError{
			Op:         op,
			Model:      model,
			Message:    message + " due to constraint violation",
			Constraint: true,
		}
	case errors.Is(err, storage.ErrMultipleRecords):
		return stateError(op, model, ErrMultipleRecordsFound)
	case errors.Is(err, context.Canceled):
		return stateError(op, model, context.Canceled)
	case errors.Is(err, context.DeadlineExceeded):
		return stateError(op, model, context.DeadlineExceeded)
	}
	return &DatabaseOperationError{
		Op:      op,
		Model:   model,
		Message: fmt.Sprintf("%s: %v", message, err),
	}
}
