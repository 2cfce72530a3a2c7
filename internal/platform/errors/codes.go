// Package errors provides structured error handling with per-transport mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserEmailEmpty   Code = "USER_EMAIL_EMPTY"
	CodeUserEmailInvalid Code = "USER_EMAIL_INVALID"
	CodeUserIDEmpty      Code = "USER_ID_EMPTY"
	CodeUserEmailTaken   Code = "USER_EMAIL_TAKEN"

	// Passkey ceremony errors
	CodeChallengeNotFound     Code = "CHALLENGE_NOT_FOUND"
	CodeChallengeExpired      Code = "CHALLENGE_EXPIRED"
	CodeChallengeUsed         Code = "CHALLENGE_USED"
	CodeChallengeKindMismatch Code = "CHALLENGE_KIND_MISMATCH"
	CodeCredentialNotFound    Code = "CREDENTIAL_NOT_FOUND"
	CodeCredentialMismatch    Code = "CREDENTIAL_USER_MISMATCH"
	CodeReplayDetected        Code = "REPLAY_DETECTED"

	// Session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Magic link errors
	CodeMagicLinkNotFound Code = "MAGIC_LINK_NOT_FOUND"
	CodeMagicLinkExpired  Code = "MAGIC_LINK_EXPIRED"
	CodeMagicLinkUsed     Code = "MAGIC_LINK_USED"

	// Tenant errors
	CodeTenantNameEmpty     Code = "TENANT_NAME_EMPTY"
	CodeTenantSlugInvalid   Code = "TENANT_SLUG_INVALID"
	CodeTenantSlugTaken     Code = "TENANT_SLUG_TAKEN"
	CodeTenantDomainTaken   Code = "TENANT_DOMAIN_TAKEN"
	CodeTenantSuspended     Code = "TENANT_SUSPENDED"
	CodeTenantInvalidStatus Code = "TENANT_INVALID_STATUS"

	// Membership errors
	CodeMembershipExists       Code = "MEMBERSHIP_EXISTS"
	CodeMembershipInvalidRole  Code = "MEMBERSHIP_INVALID_ROLE"
	CodeRoleNotAssignable      Code = "MEMBERSHIP_ROLE_NOT_ASSIGNABLE"
	CodeInsufficientRole       Code = "MEMBERSHIP_INSUFFICIENT_ROLE"
	CodeOwnerTargetProtected   Code = "MEMBERSHIP_OWNER_TARGET_PROTECTED"
	CodeLastOwnerProtected     Code = "MEMBERSHIP_LAST_OWNER_PROTECTED"
	CodeMembershipNotPending   Code = "MEMBERSHIP_NOT_PENDING"

	// Invite grant errors
	CodeInviteGrantInvalid  Code = "INVITE_GRANT_INVALID"
	CodeInviteGrantExpired  Code = "INVITE_GRANT_EXPIRED"
	CodeInviteGrantMismatch Code = "INVITE_GRANT_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeUserEmailEmpty,
		CodeUserEmailInvalid,
		CodeUserIDEmpty,
		CodeChallengeKindMismatch,
		CodeTenantNameEmpty,
		CodeTenantSlugInvalid,
		CodeTenantInvalidStatus,
		CodeMembershipInvalidRole,
		CodeRoleNotAssignable,
		CodeMembershipNotPending,
		CodeLastOwnerProtected,
		CodeMagicLinkExpired,
		CodeMagicLinkUsed,
		CodeInviteGrantInvalid,
		CodeInviteGrantExpired,
		CodeInviteGrantMismatch:
		return http.StatusBadRequest

	// Unauthorized - challenge and replay failures
	case CodeChallengeNotFound,
		CodeChallengeExpired,
		CodeChallengeUsed,
		CodeReplayDetected,
		CodeSessionNotFound:
		return http.StatusUnauthorized

	// Forbidden - authorization and policy violations
	case CodeCredentialMismatch,
		CodeInsufficientRole,
		CodeOwnerTargetProtected,
		CodeTenantSuspended:
		return http.StatusForbidden

	// Not found
	case CodeNotFound,
		CodeCredentialNotFound,
		CodeMagicLinkNotFound:
		return http.StatusNotFound

	// Conflict - uniqueness violations
	case CodeUserEmailTaken,
		CodeTenantSlugTaken,
		CodeTenantDomainTaken,
		CodeMembershipExists:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
