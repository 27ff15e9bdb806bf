package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	newApp := func(key string) *fiber.App {
		app := fiber.New()
		app.Use(New(Config{ApiKey: key}))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
		return app
	}

	t.Run("Empty key disables auth", func(t *testing.T) {
		resp, err := newApp("").Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("Rejects wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Api-Key", "wrong")
		resp, err := newApp("secret").Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Accepts correct key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Api-Key", "secret")
		resp, err := newApp("secret").Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
