package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID            string   `json:"user_id"`
	Email             string   `json:"email"`
	FullName          string   `json:"full_name"`
	HospitalIDs       []string `json:"hospital_ids,omitempty"`
	DefaultHospitalID string   `json:"default_hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// CanAccessHospital reports whether the token is scoped to the hospital. An
// empty hospital list means the token is not hospital-restricted.
func (c *JWTClaims) CanAccessHospital(hospitalID string) bool {
	if c == nil || hospitalID == "" {
		return false
	}
	if len(c.HospitalIDs) == 0 {
		return true
	}
	for _, id := range c.HospitalIDs {
		if id == hospitalID {
			return true
		}
	}
	return false
}

// Actor identifies the caller of a lifecycle operation within one hospital.
type Actor struct {
	UserID     string
	HospitalID string
	IPAddress  string
	UserAgent  string
	// System marks work the service drives itself. Never taken from claims.
	System     bool
}

// SystemActorID is recorded for transitions driven by scheduled jobs. It is
// reserved and refused as a token subject.
const SystemActorID = "system"
