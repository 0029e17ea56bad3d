package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
)

// WebhookSignatureHeader carries the provider's HMAC-SHA256 signature of
// the raw request body, hex encoded.
const WebhookSignatureHeader = "X-Provider-Signature"

// WebhookAuth verifies that an inbound provider notification was signed
// with the shared secret. Requests with a missing or wrong signature never
// reach the handler. Verification uses a constant-time comparison.
//
// An empty secret fails closed: HMAC with an empty key is forgeable by
// anyone, so every request is rejected instead. Startup refuses to run
// without a secret; this guard covers any other caller.
func WebhookAuth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		if len(key) == 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "webhook secret not configured")
		}

		sig := c.Get(WebhookSignatureHeader)
		if sig == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing signature")
		}

		want, err := hex.DecodeString(sig)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed signature")
		}

		mac := hmac.New(sha256.New, key)
		mac.Write(c.Body())
		if !hmac.Equal(mac.Sum(nil), want) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
		}

		return c.Next()
	}
}
