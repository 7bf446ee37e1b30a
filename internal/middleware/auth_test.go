package middleware_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sitewerks/spectrum-sync/internal/config"
	"github.com/sitewerks/spectrum-sync/internal/middleware"
	"github.com/sitewerks/spectrum-sync/internal/types"
)

// fakeAuthorizer answers the session-validation query; the session value in
// the request decides the verdict.
func fakeAuthorizer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payload := string(body) + r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(payload, "stale-session") {
			fmt.Fprint(w, `{"data":{"validate_session":{"is_valid":false}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"validate_session":{"is_valid":true,"user":{"id":"u-1","email":"ops@example.com"}}}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

// gatedApp mounts the admin gate in front of a trigger-shaped route, with the
// same CustomError rendering the server uses.
func gatedApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var customErr *types.CustomError
			if errors.As(err, &customErr) {
				return c.Status(customErr.Code).JSON(fiber.Map{
					"error": customErr.Message,
					"type":  customErr.Type,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Post("/api/sync", middleware.AuthAdmin(cfg), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})
	return app
}

func TestAuthAdminGate(t *testing.T) {
	// Missing cookie is rejected before any Authorizer traffic.
	app := gatedApp(&config.Config{AuthzURL: "http://127.0.0.1:1", AuthzClientID: "test_client"})
	resp, err := app.Test(httptest.NewRequest("POST", "/api/sync", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("no-cookie status = %d, want 403", resp.StatusCode)
	}

	// Unreachable Authorizer: the lazy init fails and the request is
	// rejected, but the failure must not wedge the singleton.
	req := httptest.NewRequest("POST", "/api/sync", nil)
	req.Header.Set("Cookie", "cookie_session=good-session")
	resp, err = app.Test(req, 10_000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("unreachable-authorizer status = %d, want 403", resp.StatusCode)
	}

	// With the Authorizer reachable, the same cookie now initializes the
	// client on first use and passes the gate.
	authz := fakeAuthorizer(t)
	app = gatedApp(&config.Config{AuthzURL: authz.URL, AuthzClientID: "test_client"})

	req = httptest.NewRequest("POST", "/api/sync", nil)
	req.Header.Set("Cookie", "cookie_session=good-session")
	resp, err = app.Test(req, 10_000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("valid-session status = %d, want 202 (body: %s)", resp.StatusCode, body)
	}

	// An invalidated session is still rejected through the initialized client.
	req = httptest.NewRequest("POST", "/api/sync", nil)
	req.Header.Set("Cookie", "cookie_session=stale-session")
	resp, err = app.Test(req, 10_000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("stale-session status = %d, want 403", resp.StatusCode)
	}
}
