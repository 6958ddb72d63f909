package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/token", func(c *fiber.Ctx) error {
		var req TokenRequest
		if err := c.BodyParser(&req); err != nil || req.ApplicationKey == "" || req.DriverID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "application_key and driver_id required")
		}
		resp, err := svc.IssueToken(c.Context(), req)
		if err != nil {
			return fiber.NewError(sdkerr.StatusCode(err), err.Error())
		}
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := parseBearer(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		driverID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"driver_id": driverID})
	})
}

func parseBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
