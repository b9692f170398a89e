package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/psicare/manager-api/internal/handler"
)

const HeaderAPIVersion = "X-API-Version"

// VersionConfig lists the API versions a route group answers to.
type VersionConfig struct {
	HeaderName     string
	DefaultVersion string
	Supported      []string
}

func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		HeaderName:     "Accept-Version",
		DefaultVersion: "1.0",
		Supported:      []string{"1.0"},
	}
}

var versionFormat = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Version rejects requests asking for an unsupported API version and echoes
// the served version in a response header.
func Version(config VersionConfig) gin.HandlerFunc {
	supported := make(map[string]bool, len(config.Supported))
	for _, v := range config.Supported {
		supported[v] = true
	}

	return func(c *gin.Context) {
		requested := c.GetHeader(config.HeaderName)
		if requested == "" {
			requested = config.DefaultVersion
		}

		if !versionFormat.MatchString(requested) {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid version format, use major.minor"))
			return
		}
		if !supported[requested] {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, handler.NewErrorResponse(
				fmt.Sprintf("API version %s not supported", requested)))
			return
		}

		c.Header(HeaderAPIVersion, requested)
		c.Next()
	}
}
