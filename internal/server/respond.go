package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/party"
	"github.com/chargeweave/ocpihub/internal/registration"
	"github.com/chargeweave/ocpihub/internal/store"
)

// respondData writes a success envelope.
func respondData(c *gin.Context, httpStatus int, data interface{}) {
	c.JSON(httpStatus, ocpi.NewEnvelope(data))
}

// respondError writes a failure envelope with the given OCPI status code.
func respondError(c *gin.Context, httpStatus, ocpiStatus int, message string) {
	c.JSON(httpStatus, ocpi.NewErrorEnvelope(ocpiStatus, message))
}

func abortForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, ocpi.NewErrorEnvelope(ocpi.StatusClientError, message))
}

func abortServerError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, ocpi.NewErrorEnvelope(ocpi.StatusServerError, message))
}

// respondStoreError maps store and directory errors onto the HTTP and OCPI
// status code pairs of the protocol surface.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, party.ErrPartyNotFound):
		respondError(c, http.StatusNotFound, ocpi.StatusClientError, "not found")
	case errors.Is(err, store.ErrDowngrade):
		respondError(c, http.StatusConflict, ocpi.StatusClientError, "update is older than stored object")
	case errors.Is(err, store.ErrEmptyPatch):
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "patch carries no fields")
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, party.ErrTokenInUse):
		respondError(c, http.StatusConflict, ocpi.StatusClientError, err.Error())
	default:
		respondError(c, http.StatusBadRequest, ocpi.StatusClientError, err.Error())
	}
}

// respondHandshakeError maps registration errors: wrong state and upstream
// discovery failures both surface as 405 per the credentials module contract.
func respondHandshakeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registration.ErrNotAllowed):
		respondError(c, http.StatusMethodNotAllowed, ocpi.StatusClientError, "operation not allowed in current registration state")
	case errors.Is(err, registration.ErrUnsupportedVersion):
		respondError(c, http.StatusMethodNotAllowed, ocpi.StatusUnsupportedVersion, "no mutually supported OCPI version")
	case errors.Is(err, registration.ErrUpstreamUnavailable):
		respondError(c, http.StatusMethodNotAllowed, ocpi.StatusServerError, "peer platform unavailable")
	case errors.Is(err, party.ErrTokenInUse):
		respondError(c, http.StatusConflict, ocpi.StatusClientError, err.Error())
	default:
		respondError(c, http.StatusBadRequest, ocpi.StatusClientError, err.Error())
	}
}
