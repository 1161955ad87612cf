package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// handleGetCredentials returns our credentials object for the caller. Pure
// read: it never mutates registration state.
func (s *Server) handleGetCredentials(c *gin.Context) {
	respondData(c, http.StatusOK, s.handshake.Credentials(callerToken(c)))
}

// handlePostCredentials completes a fresh registration handshake.
func (s *Server) handlePostCredentials(c *gin.Context) {
	var peer ocpi.Credentials
	if err := c.ShouldBindJSON(&peer); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid credentials object: "+err.Error())
		return
	}

	creds, err := s.handshake.Register(c.Request.Context(), callerParty(c), callerToken(c), &peer)
	if err != nil {
		respondHandshakeError(c, err)
		return
	}

	respondData(c, http.StatusOK, creds)
}

// handlePutCredentials rotates an existing registration.
func (s *Server) handlePutCredentials(c *gin.Context) {
	var peer ocpi.Credentials
	if err := c.ShouldBindJSON(&peer); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid credentials object: "+err.Error())
		return
	}

	creds, err := s.handshake.Rotate(c.Request.Context(), callerParty(c), callerToken(c), &peer)
	if err != nil {
		respondHandshakeError(c, err)
		return
	}

	respondData(c, http.StatusOK, creds)
}

// handleDeleteCredentials tears the caller's registration down.
func (s *Server) handleDeleteCredentials(c *gin.Context) {
	if err := s.handshake.Unregister(c.Request.Context(), callerParty(c), callerToken(c)); err != nil {
		respondHandshakeError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}
