package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func identityApp(t *testing.T, secret []byte) (*fiber.App, *[]*uint) {
	t.Helper()
	var seen []*uint
	app := fiber.New()
	app.Use(Identity(secret))
	app.Get("/", func(c *fiber.Ctx) error {
		seen = append(seen, Caller(c))
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &seen
}

func signedToken(t *testing.T, subject string, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token failed: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, app *fiber.App, authorization string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("identity middleware must never reject, got %d", resp.StatusCode)
	}
}

func TestIdentity_ValidToken(t *testing.T) {
	app, seen := identityApp(t, testSecret)

	doRequest(t, app, "Bearer "+signedToken(t, "42", testSecret))

	if len(*seen) != 1 || (*seen)[0] == nil || *(*seen)[0] != 42 {
		t.Fatalf("expected caller id 42, got %v", *seen)
	}
}

func TestIdentity_AnonymousPassThrough(t *testing.T) {
	app, seen := identityApp(t, testSecret)

	cases := []string{
		"",
		"Bearer not-a-token",
		"Basic dXNlcjpwYXNz",
		"Bearer " + signedToken(t, "42", []byte("wrong-secret")),
		"Bearer " + signedToken(t, "not-a-number", testSecret),
	}
	for _, auth := range cases {
		doRequest(t, app, auth)
	}

	if len(*seen) != len(cases) {
		t.Fatalf("expected %d requests through, got %d", len(cases), len(*seen))
	}
	for i, caller := range *seen {
		if caller != nil {
			t.Fatalf("case %d: expected anonymous caller, got %d", i, *caller)
		}
	}
}

func TestIdentity_ExpiredToken(t *testing.T) {
	app, seen := identityApp(t, testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	doRequest(t, app, "Bearer "+signed)

	if len(*seen) != 1 || (*seen)[0] != nil {
		t.Fatal("expired token must resolve to anonymous")
	}
}
