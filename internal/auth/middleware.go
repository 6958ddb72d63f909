package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
)

// DriverIDKey is the fiber locals key holding the token's driver id.
const DriverIDKey = "driver_id"

// JWTMiddleware admits requests carrying a bridge token for a valid driver id.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || !ident.ValidID(claims.DriverID, true) {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		c.Locals(DriverIDKey, claims.DriverID)
		return c.Next()
	}
}

// DriverID returns the driver the request was authenticated for, if any.
func DriverID(c *fiber.Ctx) string {
	id, _ := c.Locals(DriverIDKey).(string)
	return id
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
