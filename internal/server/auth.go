package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/party"
)

// implementedVersion is the version all module routes are mounted under.
const implementedVersion = ocpi.ImplementedVersion

// Context keys set by the auth middleware.
const (
	contextKeyParty = "ocpi_party"
	contextKeyToken = "ocpi_token"
)

// bearerToken extracts the token from "Authorization: Token <bearer>".
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Token") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth resolves the bearer token against the party directory and
// rejects requests whose token is absent, unknown, or not ALLOWED.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortForbidden(c, "missing or malformed authorization header")
			return
		}

		info, p, ok := s.directory.TryGetAccessInfo(token)
		if !ok {
			abortForbidden(c, "unknown token")
			return
		}
		if info.Status != party.AccessStatusAllowed || p.Status != party.StatusEnabled {
			abortForbidden(c, "token not allowed")
			return
		}

		c.Set(contextKeyParty, p)
		c.Set(contextKeyToken, token)
		c.Next()
	}
}

// optionalAuth resolves the token when present but admits anonymous callers.
// A token that is presented and does not resolve is still rejected.
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		info, p, ok := s.directory.TryGetAccessInfo(token)
		if !ok || info.Status == party.AccessStatusBlocked {
			abortForbidden(c, "token not allowed")
			return
		}

		c.Set(contextKeyParty, p)
		c.Set(contextKeyToken, token)
		c.Next()
	}
}

// callerParty returns the authenticated party, or nil for anonymous callers.
func callerParty(c *gin.Context) *party.RemoteParty {
	if v, ok := c.Get(contextKeyParty); ok {
		if p, ok := v.(*party.RemoteParty); ok {
			return p
		}
	}
	return nil
}

// callerToken returns the authenticated bearer token.
func callerToken(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}
