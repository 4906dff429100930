package storage

import "errors"

// ErrNotFound is returned when a referenced member, flare, help request or
// other record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrValidation is returned when input is rejected before any mutation.
var ErrValidation = errors.New("invalid input")

// ErrInsufficientBalance is returned when a transfer would drive the sender's
// lantern balance below zero.
var ErrInsufficientBalance = errors.New("insufficient lantern balance")

// ErrDuplicateOffer is returned when a help request already exists for the
// same (flare, helper) pair.
var ErrDuplicateOffer = errors.New("help already offered on this flare")

// ErrFlareNotActive is returned when an operation requires an active flare.
var ErrFlareNotActive = errors.New("flare is not active")

// ErrAlreadyResolved is returned when a flare already has an accepted help
// request, or is otherwise past the point the operation requires.
var ErrAlreadyResolved = errors.New("flare already resolved")

// ErrNotAccepted is returned when completion is attempted for a flare that is
// not in the accepted state with the given helper.
var ErrNotAccepted = errors.New("flare not accepted by this helper")

// ErrDuplicateRequest is returned when a connection request or live
// connection already exists between the pair.
var ErrDuplicateRequest = errors.New("connection already requested or established")

// ErrAlreadyClaimed is returned when an announcement gift was already claimed
// by the member.
var ErrAlreadyClaimed = errors.New("gift already claimed")

// ErrInviteUsed is returned when redeeming an invite code that has already
// been used.
var ErrInviteUsed = errors.New("invite code already used")

// ErrForbidden is returned when a member attempts an operation reserved for
// someone else, such as responding to offers on another member's flare.
var ErrForbidden = errors.New("operation not permitted for this member")

// ErrNotElder is returned when a non-elder attempts an elder-only operation.
var ErrNotElder = errors.New("member is not an elder")

// ErrConflict is returned when a concurrent writer invalidated the operation's
// precondition (version mismatch). Callers may retry with fresh state.
var ErrConflict = errors.New("conflicting concurrent update")
