package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		// Check if it's readable in handler (from response body)
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})

	t.Run("should propagate into the request context", func(t *testing.T) {
		ctxApp := fiber.New()
		ctxApp.Use(RequestID())
		ctxApp.Get("/ctx", func(c *fiber.Ctx) error {
			return c.SendString(RequestIDFromContext(c.UserContext()))
		})

		req := httptest.NewRequest("GET", "/ctx", nil)
		req.Header.Set(RequestIDHeader, "ctx-id-456")
		resp, _ := ctxApp.Test(req)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "ctx-id-456", buf.String())
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	// Logger usually depends on RequestID for request_id field
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	// Verify log output
	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestWebhookAuth(t *testing.T) {
	const secret = "hook-secret"

	sign := func(body string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(body))
		return hex.EncodeToString(mac.Sum(nil))
	}

	newApp := func() *fiber.App {
		app := fiber.New()
		app.Post("/webhook", WebhookAuth(secret), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		return app
	}

	t.Run("valid signature passes", func(t *testing.T) {
		body := `{"trx_id":"prov-123"}`
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		req.Header.Set(WebhookSignatureHeader, sign(body))

		resp, _ := newApp().Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{}`))

		resp, _ := newApp().Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong signature is rejected", func(t *testing.T) {
		body := `{"trx_id":"prov-123"}`
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		req.Header.Set(WebhookSignatureHeader, sign("different body"))

		resp, _ := newApp().Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("non-hex signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{}`))
		req.Header.Set(WebhookSignatureHeader, "not-hex!")

		resp, _ := newApp().Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("empty secret rejects even a matching signature", func(t *testing.T) {
		body := `{"trx_id":"prov-123"}`
		mac := hmac.New(sha256.New, nil)
		mac.Write([]byte(body))

		app := fiber.New()
		app.Post("/webhook", WebhookAuth(""), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})

		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		req.Header.Set(WebhookSignatureHeader, hex.EncodeToString(mac.Sum(nil)))

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tampered body is rejected", func(t *testing.T) {
		body := `{"trx_id":"prov-123","amount":"150.75"}`
		sig := sign(body)
		tampered := `{"trx_id":"prov-123","amount":"999.99"}`

		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(tampered))
		req.Header.Set(WebhookSignatureHeader, sig)

		resp, _ := newApp().Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
