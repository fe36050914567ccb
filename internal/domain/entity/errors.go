package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a project, invoice, attachment or material does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a request is rejected before any state change
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when an operation is not legal for the invoice status
	ErrInvalidState = errors.New("invalid invoice state")

	// ErrReconciliation is returned when a draft cannot be confirmed as is
	ErrReconciliation = errors.New("reconciliation failed")

	// ErrExtraction is returned when the extraction engine fails or returns unusable output
	ErrExtraction = errors.New("extraction failed")
)

// Confirmation rejections. Each names the condition the reviewer has to fix.
var (
	ErrTotalsMismatch         = fmt.Errorf("%w: line subtotal does not match invoice subtotal", ErrReconciliation)
	ErrOverrideReasonRequired = fmt.Errorf("%w: totals mismatch override requires a reason", ErrReconciliation)
	ErrMaterialRequired       = fmt.Errorf("%w: every line must be linked to a material", ErrReconciliation)

	// ErrUnknownMaterial is an input error on update; confirm wraps it with ErrReconciliation
	ErrUnknownMaterial = fmt.Errorf("%w: material does not exist in the project catalog", ErrInvalidInput)
)
