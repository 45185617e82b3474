package gateway

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/soamart/storefront/internal/middleware/auth"
)

// forwardIdentity copies the identity resolved by RequireLogin into headers
// the proxied backends can trust, replacing anything the client sent.
func forwardIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			if id, ok := auth.UserID(c); ok {
				h.Set("X-User-Id", fmt.Sprint(id))
			} else {
				h.Del("X-User-Id")
			}
			if role := auth.Role(c); role != "" {
				h.Set("X-User-Role", role)
			} else {
				h.Del("X-User-Role")
			}
			return next(c)
		}
	}
}

// Register wires the edge routes. Authentication is resolved here once; the
// backends behind the proxy receive already-gated traffic for the protected
// groups.
func Register(e *echo.Echo, cfg *Config) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	authProxy, err := newProxy(cfg.AuthURL, "")
	if err != nil {
		return err
	}
	catalogProxy, err := newProxy(cfg.CatalogURL, "")
	if err != nil {
		return err
	}
	orderProxy, err := newProxy(cfg.OrderURL, "")
	if err != nil {
		return err
	}
	adminProxy, err := newProxy(cfg.AdminURL, "")
	if err != nil {
		return err
	}

	v1 := e.Group("/api/v1")

	v1.Any("/auth/*", authProxy)
	v1.Any("/products", catalogProxy)
	v1.Any("/products/*", catalogProxy)
	v1.Any("/categories", catalogProxy)
	v1.Any("/search", catalogProxy)

	ordersGroup := v1.Group("/orders", auth.RequireLogin(cfg.JWTSecret), forwardIdentity())
	ordersGroup.Any("", orderProxy)
	ordersGroup.Any("/*", orderProxy)

	adminGroup := v1.Group("/admin", auth.RequireLogin(cfg.JWTSecret), auth.AdminOnly(), forwardIdentity())
	adminGroup.Any("/*", adminProxy)

	return nil
}
