package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/config"
)

// BasicAuth gates requests behind HTTP Basic auth with a single account.
// The Authorization header is left on the request, so the hub still sees it.
func BasicAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return gin.BasicAuthForRealm(gin.Accounts{cfg.User: cfg.Password}, cfg.Realm)
}
