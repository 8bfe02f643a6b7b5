package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-workorder-api/internal/dto"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	"github.com/noah-isme/facility-workorder-api/internal/service"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
	"github.com/noah-isme/facility-workorder-api/pkg/response"
)

type permissionLookup interface {
	Resolve(ctx context.Context, userID, hospitalID string) *service.PermissionSet
	Refresh(ctx context.Context, userID, hospitalID string) *service.PermissionSet
	Roles(ctx context.Context, userID, hospitalID string) (models.RoleSet, error)
}

// PermissionHandler exposes the caller's effective permissions.
type PermissionHandler struct {
	permissions permissionLookup
	logger      *zap.Logger
}

// NewPermissionHandler constructs PermissionHandler.
func NewPermissionHandler(permissions permissionLookup, logger *zap.Logger) *PermissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionHandler{permissions: permissions, logger: logger}
}

// Me godoc
// @Summary Effective permissions of the caller in the active hospital
// @Tags Permissions
// @Produce json
// @Param X-Hospital-ID header string false "Active hospital"
// @Success 200 {object} response.Envelope
// @Router /me/permissions [get]
func (h *PermissionHandler) Me(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	set := h.permissions.Resolve(c.Request.Context(), actor.UserID, actor.HospitalID)
	response.JSON(c, http.StatusOK, h.describe(c.Request.Context(), actor, set), nil)
}

// Refresh godoc
// @Summary Drop cached permissions and resolve again
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/permissions/refresh [post]
func (h *PermissionHandler) Refresh(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	set := h.permissions.Refresh(c.Request.Context(), actor.UserID, actor.HospitalID)
	response.JSON(c, http.StatusOK, h.describe(c.Request.Context(), actor, set), nil)
}

// Check godoc
// @Summary Check permission keys
// @Tags Permissions
// @Produce json
// @Param keys query string true "Comma separated permission keys"
// @Param mode query string false "any or all (default all)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/permissions/check [get]
func (h *PermissionHandler) Check(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var keys []string
	for _, raw := range strings.Split(c.Query("keys"), ",") {
		if key := strings.TrimSpace(raw); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "keys is required"))
		return
	}
	mode := strings.ToLower(c.DefaultQuery("mode", "all"))
	if mode != "any" && mode != "all" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be any or all"))
		return
	}

	set := h.permissions.Resolve(c.Request.Context(), actor.UserID, actor.HospitalID)
	if err := set.Err(); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "permissions unavailable, please retry"))
		return
	}

	result := dto.PermissionCheckResult{Mode: mode, Keys: make(map[string]bool, len(keys))}
	for _, key := range keys {
		result.Keys[key] = set.HasPermission(key)
	}
	if mode == "any" {
		result.Allowed = set.HasAnyPermission(keys...)
	} else {
		result.Allowed = set.HasAllPermissions(keys...)
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *PermissionHandler) describe(ctx context.Context, actor models.Actor, set *service.PermissionSet) dto.EffectivePermissions {
	roles, err := h.permissions.Roles(ctx, actor.UserID, actor.HospitalID)
	if err != nil {
		h.logger.Warn("role lookup failed", zap.String("user_id", actor.UserID), zap.Error(err))
		roles = models.RoleSet{}
	}
	return dto.EffectivePermissions{
		UserID:      actor.UserID,
		HospitalID:  actor.HospitalID,
		Roles:       roles.Codes(),
		Permissions: set.Keys(),
		RoleConfig:  service.RoleConfigFor(roles),
		Degraded:    err != nil || set.Err() != nil,
	}
}
