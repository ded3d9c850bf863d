package domain

import "fmt"

// OutcomeKind tags the result of one resolution attempt.
type OutcomeKind string

const (
	OutcomeCreated             OutcomeKind = "created"
	OutcomeLinked              OutcomeKind = "linked"
	OutcomeSignedIn            OutcomeKind = "signed_in"
	OutcomeAlreadyLinked       OutcomeKind = "already_linked"
	OutcomeLinkConflict        OutcomeKind = "link_conflict"
	OutcomeEmailConflict       OutcomeKind = "email_conflict"
	OutcomeProviderUnavailable OutcomeKind = "provider_unavailable"
	OutcomeMalformedProfile    OutcomeKind = "malformed_profile"
	OutcomeInvalidCredential   OutcomeKind = "invalid_credential"
	OutcomeSessionInvalid      OutcomeKind = "session_invalid"
	OutcomeRetry               OutcomeKind = "retry"
)

// Outcome is what the web layer translates into a redirect and a message.
// Identity is set for every kind that leaves the caller authenticated.
type Outcome struct {
	Kind     OutcomeKind
	Provider ProviderKind
	Identity *Identity
	Err      error
}

// Authenticated reports whether the caller should hold a session for
// Outcome.Identity afterwards.
func (o Outcome) Authenticated() bool {
	switch o.Kind {
	case OutcomeCreated, OutcomeLinked, OutcomeSignedIn, OutcomeAlreadyLinked:
		return o.Identity != nil
	}
	return false
}

// Message returns a short user-facing description.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeCreated:
		return "Your account has been created."
	case OutcomeLinked:
		return fmt.Sprintf("Your %s account has been linked.", o.Provider)
	case OutcomeSignedIn:
		return "Success! You are logged in."
	case OutcomeAlreadyLinked:
		return fmt.Sprintf("Your %s account is already linked.", o.Provider)
	case OutcomeLinkConflict:
		return fmt.Sprintf("There is already a %s account that belongs to another user. Sign in with that account or delete it, then link it with your current account.", o.Provider)
	case OutcomeEmailConflict:
		return fmt.Sprintf("There is already an account using this email address. Sign in to that account and link it with %s manually from Account Settings.", o.Provider)
	case OutcomeProviderUnavailable:
		return fmt.Sprintf("%s is not responding right now. Please try again.", o.Provider)
	case OutcomeMalformedProfile:
		return "The provider returned an incomplete profile."
	case OutcomeInvalidCredential:
		return "Invalid email or password."
	case OutcomeSessionInvalid:
		return "Your session has expired. Please sign in again."
	case OutcomeRetry:
		return "Sign in is already in progress. Please try again."
	default:
		return "Something went wrong."
	}
}
