// Package authz holds the authorization decisions applied by services.
// Every function here is pure: no I/O, no state.
package authz

import (
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// CanMutate reports whether the actor may update or delete a resource owned by ownerID.
func CanMutate(actorID int64, actorRole model.Role, ownerID int64) bool {
	return actorRole == model.RoleAdmin || actorID == ownerID
}

// RequireAdmin fails with ErrForbidden unless role is admin.
func RequireAdmin(role model.Role) error {
	if role != model.RoleAdmin {
		return errs.New(errs.ErrForbidden, "Admin access required")
	}
	return nil
}

// CheckRename rejects any username change on the admin account.
// Re-submitting the current username is not a change.
func CheckRename(target model.User, newUsername string) error {
	if target.IsAdmin() && newUsername != target.Username {
		return errs.New(errs.ErrValidation, "Cannot change admin username")
	}
	return nil
}

// CheckDelete rejects deletion of the admin account.
func CheckDelete(target model.User) error {
	if target.IsAdmin() {
		return errs.New(errs.ErrValidation, "Cannot delete admin user")
	}
	return nil
}
