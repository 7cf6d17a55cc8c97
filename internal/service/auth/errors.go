package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/swami086/gentle-space-realty/internal/domain"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrAccessDenied is returned when a valid identity lacks an admin role.
	ErrAccessDenied = errors.New("auth: access denied")
	// ErrProviderNotEnabled marks identity provider configuration errors.
	ErrProviderNotEnabled = errors.New("auth: provider not enabled")
	// ErrUnknownProvider is returned for providers the service does not know.
	ErrUnknownProvider = errors.New("auth: unknown provider")
	// ErrInvalidState is returned for unknown, reused or expired OAuth states.
	ErrInvalidState = errors.New("auth: invalid or expired login state")
	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("auth: authorization code missing")
	// ErrLoginCancelled is returned when the user declines consent.
	ErrLoginCancelled = errors.New("auth: login cancelled")
	// ErrEmailNotVerified is returned when the provider cannot vouch for the email.
	ErrEmailNotVerified = errors.New("auth: email not verified by provider")
	// ErrProviderUnavailable marks transient provider or backend failures.
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")
	// ErrProviderRejected marks provider errors that retrying will not fix.
	ErrProviderRejected = errors.New("auth: identity provider rejected the request")
	// ErrTokenRequired is returned by Authorize for an empty token.
	ErrTokenRequired = errors.New("auth: token required")
	// ErrForbidden is returned when the acting user may not perform an operation.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrSelfDemotion prevents a super admin from removing their own role.
	ErrSelfDemotion = errors.New("auth: super admin cannot demote themselves")
	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("auth: invalid input")
)

// ConfigurationError reports a provider that is not usable as configured.
// Description is shown to the operator verbatim.
type ConfigurationError struct {
	Provider    string
	Description string
}

func (e *ConfigurationError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth: provider %s not enabled", e.Provider)
	}
	return fmt.Sprintf("auth: provider %s not enabled: %s", e.Provider, e.Description)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrProviderNotEnabled
}

// ProviderError carries the error parameters an identity provider sent back.
type ProviderError struct {
	Code        string
	Description string
	kind        ErrorKind
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return "auth: provider returned " + e.Code
	}
	return "auth: provider returned " + e.Code + ": " + e.Description
}

func (e *ProviderError) Unwrap() error {
	if e.kind == KindTransient {
		return ErrProviderUnavailable
	}
	return ErrProviderRejected
}

// ErrorKind groups errors by how the caller should react.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindConfiguration is not retried; the operator must fix settings.
	KindConfiguration
	// KindTransient may succeed on retry.
	KindTransient
	// KindDenied is an authorization refusal, not a failure.
	KindDenied
	// KindInvalid is a malformed, stale or cancelled request.
	KindInvalid
	// KindUnauthenticated means credentials are missing or wrong.
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindTransient:
		return "transient"
	case KindDenied:
		return "denied"
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Classify maps an error returned by the service onto an ErrorKind. Errors the
// service does not recognise are treated as transient backend failures.
func Classify(err error) ErrorKind {
	var cfgErr *ConfigurationError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &cfgErr), errors.Is(err, ErrProviderNotEnabled), errors.Is(err, ErrUnknownProvider):
		return KindConfiguration
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrForbidden), errors.Is(err, ErrSelfDemotion):
		return KindDenied
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTokenRequired):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrMissingCode),
		errors.Is(err, ErrLoginCancelled),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrProviderRejected),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownRole):
		return KindInvalid
	}
	return KindTransient
}

// providerDisabledMarkers are substrings providers use in error_description
// when the sign-in method is switched off for the project.
var providerDisabledMarkers = []string{
	"provider is not enabled",
	"unsupported provider",
}

// providerErrorFromCallback converts callback error parameters into an error.
// It returns nil when the callback carries no error.
func providerErrorFromCallback(provider string, in CallbackInput) error {
	code := strings.TrimSpace(in.Error)
	errorCode := strings.TrimSpace(in.ErrorCode)
	description := strings.TrimSpace(in.ErrorDescription)
	if code == "" && errorCode == "" && description == "" {
		return nil
	}
	if isProviderDisabled(errorCode, description) {
		return &ConfigurationError{Provider: provider, Description: description}
	}
	switch code {
	case "access_denied":
		return fmt.Errorf("%w: %s", ErrLoginCancelled, firstNonEmpty(description, code))
	case "server_error", "temporarily_unavailable":
		return &ProviderError{Code: code, Description: description, kind: KindTransient}
	}
	return &ProviderError{Code: firstNonEmpty(code, errorCode), Description: description, kind: KindInvalid}
}

func isProviderDisabled(errorCode, description string) bool {
	if strings.EqualFold(errorCode, "provider_disabled") {
		return true
	}
	lowered := strings.ToLower(description)
	for _, marker := range providerDisabledMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
