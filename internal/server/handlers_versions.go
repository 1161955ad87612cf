package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/versions"
)

// handleVersions serves the advertised version list.
func (s *Server) handleVersions(c *gin.Context) {
	respondData(c, http.StatusOK, s.negotiator.Versions())
}

// handleVersionDetails serves the endpoint list of one version, tailored to
// the caller's role.
func (s *Server) handleVersionDetails(c *gin.Context) {
	var callerRole ocpi.Role
	if p := callerParty(c); p != nil {
		callerRole = p.Role
	}

	details, err := s.negotiator.Details(ocpi.VersionNumber(c.Param("version")), callerRole)
	if err != nil {
		if errors.Is(err, versions.ErrUnknownVersion) {
			respondError(c, http.StatusNotFound, ocpi.StatusClientError, "unknown version")
			return
		}
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, details)
}
