package model

import "errors"

// Ошибки ядра планирования. Операции оборачивают их через fmt.Errorf("%w: ...")
var (
	ErrDuplicateIdentity = errors.New("participant already registered")
	ErrEligibility       = errors.New("requester is not eligible for this provider")
	ErrNoCapacity        = errors.New("no free slot in horizon")
	ErrCapacity          = errors.New("slot cannot accommodate appointment")
	ErrInvalidState      = errors.New("invalid appointment state")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
)
