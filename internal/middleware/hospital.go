package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
	"github.com/noah-isme/facility-workorder-api/pkg/logger"
	"github.com/noah-isme/facility-workorder-api/pkg/response"
)

const (
	// HospitalHeader selects the hospital a request operates in.
	HospitalHeader = "X-Hospital-ID"
	// ContextHospitalKey is the gin context key storing the active hospital.
	ContextHospitalKey = "hospitalID"
)

// HospitalScope resolves the active hospital from the request header, falling
// back to the token default, and checks the token may act in it. It must run
// after JWT.
func HospitalScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		hospitalID := strings.TrimSpace(c.GetHeader(HospitalHeader))
		if hospitalID == "" {
			hospitalID = strings.TrimSpace(claims.DefaultHospitalID)
		}
		if hospitalID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, HospitalHeader+" header is required"))
			c.Abort()
			return
		}
		if !claims.CanAccessHospital(hospitalID) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "hospital is outside the token scope"))
			c.Abort()
			return
		}

		c.Set(ContextHospitalKey, hospitalID)
		c.Set(logger.HospitalIDKey, hospitalID)
		c.Next()
	}
}

// HospitalFromContext returns the active hospital, or "".
func HospitalFromContext(c *gin.Context) string {
	return c.GetString(ContextHospitalKey)
}
