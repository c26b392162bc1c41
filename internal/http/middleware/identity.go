package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "caller_id"

// Identity resolves the opaque caller identity for a request: a valid HS256
// bearer token yields a caller id in locals, anything else leaves the
// request anonymous. Authorization decisions stay with the handlers; this
// middleware never rejects.
func Identity(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || len(secret) == 0 {
			return c.Next()
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return c.Next()
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return c.Next()
		}
		id, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil {
			return c.Next()
		}

		c.Locals(callerKey, uint(id))
		return c.Next()
	}
}

// Caller returns the authenticated caller id, or nil for anonymous
// requests.
func Caller(c *fiber.Ctx) *uint {
	if id, ok := c.Locals(callerKey).(uint); ok {
		return &id
	}
	return nil
}
