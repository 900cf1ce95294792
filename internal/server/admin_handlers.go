package server

import (
	"strings"

	"socialhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns the evaluated flags for the calling admin.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"evaluated": s.featureFlags.Snapshot(callerID(c)),
	})
}

// UnlockUser handles POST /api/admin/users/:id/unlock
// @Summary Unlock account
// @Description Clears the failed login counter and the lock flag
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/unlock [post]
func (s *Server) UnlockUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.authService.UnlockAccount(c.UserContext(), callerID(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLockStatus handles GET /api/admin/users/:id/lock-status
func (s *Server) GetLockStatus(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userRepo.GetByID(c.UserContext(), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id":               user.ID,
		"username":              user.Username,
		"locked":                user.Locked,
		"locked_at":             user.LockedAt,
		"failed_login_attempts": user.FailedLoginAttempts,
	})
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote-admin
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.SetAdmin(c.UserContext(), targetID, true); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User promoted to admin", "user_id": targetID})
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote-admin
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if strings.EqualFold(s.config.Env, "development") && targetID == 1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("cannot demote protected development root admin user"))
	}
	if targetID == callerID(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Cannot demote yourself"))
	}

	if err := s.userService.SetAdmin(c.UserContext(), targetID, false); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User demoted from admin", "user_id": targetID})
}
