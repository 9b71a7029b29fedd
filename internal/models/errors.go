package models

import (
	"fmt"
	"time"
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// DataLoadError reports an unreadable or malformed source.
// No partial dataset accompanies it.
type DataLoadError struct {
	Source  string
	Row     int // 1-based source line, 0 when not row specific
	Message string
	Err     error
}

func (e *DataLoadError) Error() string {
	msg := fmt.Sprintf("load %s: %s", e.Source, e.Message)
	if e.Row > 0 {
		msg = fmt.Sprintf("load %s row %d: %s", e.Source, e.Row, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// IsTransient returns false, sources are local and a retry reads the same bytes
func (e *DataLoadError) IsTransient() bool {
	return false
}

// InvalidRangeError reports an inverted, incomplete or out-of-bounds date selection
type InvalidRangeError struct {
	Start   time.Time
	End     time.Time
	Message string
}

func (e *InvalidRangeError) Error() string {
	return "invalid date range: " + e.Message
}

// IsTransient returns false as range errors are permanent
func (e *InvalidRangeError) IsTransient() bool {
	return false
}

// EmptyResultError is the "no matching data" terminal state of a filter pass
type EmptyResultError struct {
	Grain Grain
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no %s records match the selected filters", e.Grain)
}

// IsTransient returns false as the same filters always yield the same rows
func (e *EmptyResultError) IsTransient() bool {
	return false
}
