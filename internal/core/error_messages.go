package core

// # Error Codes Reference
//
// Technical errors are mapped to user-facing messages with a code that can be
// quoted to support. Typed and sentinel errors are matched first with
// errors.Is/errors.As; anything else falls back to case-insensitive substring
// patterns on the error text.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Source not found: the CSV file could not be opened
//	IMP002 - Bulk write failed: a batch was rejected by the database
//	IMP003 - Line too long: a line exceeded the scanner limit
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No fields: a spreadsheet export selected no columns
//	EXP002 - Destination write: an export file could not be written
//
// # Operation Errors (OPS001-OPS099)
//
//	OPS001 - Busy: another operation is running
//	OPS002 - Cancelled: the operation was cancelled
//	OPS003 - Not found: unknown or expired operation id
//	OPS004 - Timed out: the operation hit its deadline
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Timeout
//	DB004 - Deadlock
//	DB005 - Missing table
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgSourceNotFound = UserMessage{
		Message: "The import file could not be opened",
		Action:  "Check the path and file permissions",
		Code:    "IMP001",
	}
	msgBulkWrite = UserMessage{
		Message: "The database rejected a batch of records",
		Action:  "Records before the failed batch were saved. Check the logs and retry",
		Code:    "IMP002",
	}
	msgLineTooLong = UserMessage{
		Message: "A line in the file is too long",
		Action:  "Make sure the file is semicolon-separated text with one record per line",
		Code:    "IMP003",
	}
	msgNoFields = UserMessage{
		Message: "No export fields were selected",
		Action:  "Select at least one field to export",
		Code:    "EXP001",
	}
	msgDestination = UserMessage{
		Message: "The export file could not be written",
		Action:  "Check the destination folder exists and has free space",
		Code:    "EXP002",
	}
	msgBusy = UserMessage{
		Message: "Another operation is already running",
		Action:  "Wait for it to finish and try again",
		Code:    "OPS001",
	}
	msgCancelled = UserMessage{
		Message: "The operation was cancelled",
		Action:  "Start it again when ready",
		Code:    "OPS002",
	}
	msgOperationNotFound = UserMessage{
		Message: "Operation not found",
		Action:  "The operation may have expired. Start a new one",
		Code:    "OPS003",
	}
	msgTimedOut = UserMessage{
		Message: "The operation timed out",
		Action:  "Narrow the filter or raise the operation timeout",
		Code:    "OPS004",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted after the typed checks. First match wins.
var errorPatterns = []errorPattern{
	{"token too long", msgLineTooLong},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"timeout", UserMessage{
		Message: "Database operation timed out",
		Action:  "Please try again later",
		Code:    "DB003",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB004",
	}},
	{"does not exist", UserMessage{
		Message: "The persons table is missing",
		Action:  "Restart the server so the schema is created",
		Code:    "DB005",
	}},
	{"no such table", UserMessage{
		Message: "The persons table is missing",
		Action:  "Restart the server so the schema is created",
		Code:    "DB005",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("import: %w", ErrSourceNotFound))
//	// msg.Code == "IMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var bulkErr *BulkWriteError
	var destErr *DestinationWriteError

	switch {
	case errors.Is(err, ErrSourceNotFound):
		return msgSourceNotFound
	case errors.Is(err, ErrEmptyFieldSelection):
		return msgNoFields
	case errors.Is(err, ErrOperationInProgress):
		return msgBusy
	case errors.Is(err, ErrOperationNotFound):
		return msgOperationNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.As(err, &destErr):
		return msgDestination
	case errors.As(err, &bulkErr):
		// The cause is often more specific than "batch failed".
		if m := matchPattern(bulkErr.Err); m.Code != defaultMessage.Code {
			return m
		}
		return msgBulkWrite
	}

	return matchPattern(err)
}

func matchPattern(err error) UserMessage {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
