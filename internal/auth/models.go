package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grant is what an application key allows.
type Grant struct {
	Regions       []string `json:"regions"`
	Motorcycle    bool     `json:"motorcycle"`
	Deprovisioned bool     `json:"deprovisioned"`
}

// AllowsRegion treats an empty region list as unrestricted.
func (g Grant) AllowsRegion(region string) bool {
	if len(g.Regions) == 0 {
		return true
	}
	for _, r := range g.Regions {
		if r == region {
			return true
		}
	}
	return false
}

type ApplicationKey struct {
	ID              string    `json:"id"`
	Key             string    `json:"key,omitempty"`
	Regions         []string  `json:"regions"`
	AllowMotorcycle bool      `json:"allow_motorcycle"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateKeyRequest struct {
	Regions         []string `json:"regions"`
	AllowMotorcycle bool     `json:"allow_motorcycle"`
}

type TokenRequest struct {
	ApplicationKey string `json:"application_key"`
	DriverID       string `json:"driver_id"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Claims struct {
	DriverID string `json:"driver_id"`
	jwt.RegisteredClaims
}
