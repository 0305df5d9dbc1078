package membership

import "errors"

// Failure kinds surfaced by the membership service. Callers branch with
// errors.Is; anything not matching one of these is a store failure and may
// be retried at the caller's discretion. The service never retries.
var (
	// ErrValidation covers empty required fields and malformed roles.
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthorized is returned when the acting user's role does not
	// permit the operation, including when they are not a member at all.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned when a household, profile, or invitation
	// referenced by id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidToken: no invitation matches the presented token.
	ErrInvalidToken = errors.New("invalid invitation token")

	// ErrAlreadyUsed: the invitation has left pending (accepted or
	// cancelled); the token can never become usable again.
	ErrAlreadyUsed = errors.New("invitation already used")

	// ErrExpired: the invitation's expiry has passed.
	ErrExpired = errors.New("invitation expired")

	// ErrEmailMismatch: the accepter's email does not match the invited
	// address. The invitation stays pending.
	ErrEmailMismatch = errors.New("invitation email mismatch")

	// ErrSelfRemoval: owners cannot remove themselves.
	ErrSelfRemoval = errors.New("cannot remove yourself")

	// ErrMemberNotFound: the removal target is not a member.
	ErrMemberNotFound = errors.New("member not found")
)
