package services

import (
	"net/http"

	"github.com/charlesng35/fratpos/internal/repository"
	apperrors "github.com/charlesng35/fratpos/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists indicates the email is already registered.
	ErrUserExists = apperrors.New("USER_EXISTS", "A user with this email already exists", http.StatusConflict)
	// ErrUserHasHistory blocks deleting users referenced by transactions or obligations.
	ErrUserHasHistory = apperrors.New("USER_HAS_HISTORY", "User has transactions or obligations; deactivate instead", http.StatusConflict)
	// ErrUserInactive indicates the user account is deactivated.
	ErrUserInactive = apperrors.New("USER_INACTIVE", "User is not active", http.StatusBadRequest)

	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrRoleExists indicates a role name is taken.
	ErrRoleExists = apperrors.New("ROLE_EXISTS", "A role with this name already exists", http.StatusConflict)

	// ErrProfileExists mirrors the rule that a user has at most one profile.
	ErrProfileExists = apperrors.New("PROFILE_EXISTS", "User profile already exists", http.StatusBadRequest)
	// ErrProfileNotFound indicates the profile does not exist for the user.
	ErrProfileNotFound = apperrors.New("PROFILE_NOT_FOUND", "User profile not found", http.StatusNotFound)

	// ErrObligationNotFound indicates the requested obligation does not exist.
	ErrObligationNotFound = apperrors.New("OBLIGATION_NOT_FOUND", "Obligation not found", http.StatusNotFound)

	// ErrPaytypeNotFound indicates the requested paytype does not exist.
	ErrPaytypeNotFound = apperrors.New("PAYTYPE_NOT_FOUND", "Paytype not found", http.StatusNotFound)
	// ErrPaytypeNotAllowed is returned when the user's status may not use the paytype.
	ErrPaytypeNotAllowed = apperrors.New("PAYTYPE_NOT_ALLOWED", "Paytype is not allowed for this user", http.StatusBadRequest)
	// ErrProductNotFound indicates a product in the transaction does not exist or is inactive.
	ErrProductNotFound = apperrors.New("PRODUCT_NOT_FOUND", "Product not found", http.StatusNotFound)
	// ErrInsufficientBalance is returned when a non-credit paytype would overdraw the balance.
	ErrInsufficientBalance = apperrors.New("INSUFFICIENT_BALANCE", "Insufficient balance", http.StatusBadRequest)
	// ErrTransactionNotFound indicates the requested transaction does not exist.
	ErrTransactionNotFound = apperrors.New("TRANSACTION_NOT_FOUND", "Transaction not found", http.StatusNotFound)
	// ErrTransactionInvalidated is returned when invalidating an already invalid transaction.
	ErrTransactionInvalidated = apperrors.New("TRANSACTION_INVALIDATED", "Transaction is already invalidated", http.StatusConflict)
)

func isUniqueConstraintError(err error) bool {
	return repository.IsUniqueViolation(err)
}
