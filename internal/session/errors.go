package session

import "fmt"

// AuthErrorKind classifies user-recoverable authentication failures.
type AuthErrorKind string

const (
	// InvalidCredentials covers a rejected email/password pair.
	InvalidCredentials AuthErrorKind = "invalid_credentials"
	// FederatedLoginFailed covers a rejected third-party identity token.
	FederatedLoginFailed AuthErrorKind = "federated_login_failed"
	// RegistrationFailed covers validation and duplicate-account rejections;
	// the backend's sub-cases are not distinguished.
	RegistrationFailed AuthErrorKind = "registration_failed"
)

// AuthError is returned by Login, LoginWithSocialToken and Register so
// callers can render inline feedback.
type AuthError struct {
	Kind  AuthErrorKind
	cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Kind, e.cause)
}

func (e *AuthError) Unwrap() error { return e.cause }
