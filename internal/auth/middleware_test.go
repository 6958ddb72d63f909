package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func privateApp() *fiber.App {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret"), func(c *fiber.Ctx) error {
		return c.SendString(DriverID(c))
	})
	return app
}

func get(t *testing.T, app *fiber.App, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestJWTMiddleware(t *testing.T) {
	app := privateApp()
	svc := NewService("secret", nil)

	if code := get(t, app, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without token, got %d", code)
	}
	if code := get(t, app, "Basic abc"); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for basic auth, got %d", code)
	}

	token, _ := svc.signToken("driver-1", accessTokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.StatusCode)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "driver-1" {
		t.Fatalf("expected driver id in locals, got %q", body)
	}

	other, _ := NewService("other", nil).signToken("driver-1", accessTokenTTL)
	if code := get(t, app, "Bearer "+other); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for foreign token, got %d", code)
	}

	expired, _ := svc.signToken("driver-1", -time.Minute)
	if code := get(t, app, "Bearer "+expired); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for expired token, got %d", code)
	}
}

func TestJWTMiddlewareRejectsBadClaims(t *testing.T) {
	app := privateApp()

	noDriver, _ := NewService("secret", nil).signToken("", accessTokenTTL)
	if code := get(t, app, "Bearer "+noDriver); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without driver id, got %d", code)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{DriverID: "driver-1"}).SignedString([]byte("secret"))
	if code := get(t, app, "Bearer "+hs512); code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for unexpected signing method, got %d", code)
	}
}

func TestDriverIDWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("[" + DriverID(c) + "]")
	})
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if body, _ := io.ReadAll(resp.Body); string(body) != "[]" {
		t.Fatalf("expected empty driver id, got %q", body)
	}
}
