package shared

import "errors"

var (
	// ErrEmailTaken indicates a registration attempt for an existing email.
	ErrEmailTaken = errors.New("email already exists")
	// ErrInvalidCredentials indicates login failure. Unknown email and wrong
	// password are reported identically to prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnknownEmail indicates an operation against an email with no account.
	ErrUnknownEmail = errors.New("invalid email")
	// ErrAlreadyLoggedOut indicates a logout for a session flag already cleared.
	ErrAlreadyLoggedOut = errors.New("user already logged out")
	// ErrCodeNotFound indicates no verification entry exists for the email.
	ErrCodeNotFound = errors.New("email not found")
	// ErrCodeAlreadyUsed indicates the verification code was consumed before.
	ErrCodeAlreadyUsed = errors.New("code has already been used")
	// ErrCodeMismatch indicates the submitted code differs from the issued one.
	ErrCodeMismatch = errors.New("invalid code")
)
