package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidCompanyID     = errors.New("invalid company id")
	ErrContactUnscoped      = errors.New("contact needs an affiliation, vendor flag, or private flag")
	ErrInvalidPrivateOwner  = errors.New("private contact requires an owner")
	ErrInvalidVisibility    = errors.New("invalid project visibility")
	ErrInvalidSharedContact = errors.New("one-on-one project requires a shared contact")
	ErrInvalidProjectID     = errors.New("invalid project id")
	ErrInvalidDescription   = errors.New("invalid description")
	ErrInvalidStatus        = errors.New("invalid task status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidCadence       = errors.New("cadence must be a positive number of days")
	ErrInvalidGateName      = errors.New("invalid gate name")
	ErrInvalidGatePosition  = errors.New("invalid gate position")
	ErrGateNotFound         = errors.New("gate not found")
	ErrInvalidBody          = errors.New("invalid note body")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidBugStatus     = errors.New("invalid bug report status")
)
