package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrAdminRequired        = errors.New("admin role required")
	ErrDuplicateName        = errors.New("name already in use")
	ErrProjectNotEmpty      = errors.New("project still has tasks")
	ErrContactInUse         = errors.New("contact is still referenced")
	ErrContactNotAssignable = errors.New("contact cannot be assigned in this project")
	ErrUnknownCompany       = errors.New("unknown company")
	ErrScreenshotsDisabled  = errors.New("screenshot storage is not configured")
	ErrNotifierUnavailable  = errors.New("digest notifier is not configured")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrInvalidImport        = errors.New("invalid import file")
	ErrAlreadyImpersonating = errors.New("impersonation cannot be nested")
	ErrSelfMerge            = errors.New("cannot merge a contact into itself")
	ErrScreenshotTooLarge   = errors.New("screenshot exceeds size limit")
)
