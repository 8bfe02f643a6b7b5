package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-workorder-api/internal/middleware"
	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

// actorFromContext builds the caller identity from the verified token and the
// active hospital.
func actorFromContext(c *gin.Context) (models.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" || claims.UserID == models.SystemActorID {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	hospitalID := middleware.HospitalFromContext(c)
	if hospitalID == "" {
		return models.Actor{}, appErrors.Clone(appErrors.ErrValidation, middleware.HospitalHeader+" header is required")
	}
	return models.Actor{
		UserID:     claims.UserID,
		HospitalID: hospitalID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	}, nil
}
