package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("patient with this MRN already exists")
	ErrInvalidGender        = errors.New("invalid gender value")
	ErrInvalidOutcome       = errors.New("invalid call outcome")
	ErrInvalidNextAction    = errors.New("invalid next action: kind, date, and time are required")
	ErrInvalidDateOfBirth   = errors.New("date of birth cannot be in the future")
	ErrMRNRequired          = errors.New("MRN is required")
)
