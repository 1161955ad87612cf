package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/store"
)

func (s *Server) handleGetTariff(c *gin.Context) {
	tariff, err := s.stores.Tariffs.Get(c.Param("tariff_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, tariff)
}

func (s *Server) handlePutTariff(c *gin.Context) {
	var tariff store.Tariff
	if err := c.ShouldBindJSON(&tariff); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid tariff object: "+err.Error())
		return
	}
	if !bindIdentity(c, &tariff.ID, "tariff_id", &tariff.CountryCode, &tariff.PartyID) {
		return
	}

	_, created, err := s.stores.Tariffs.AddOrUpdate(&tariff, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, statusForUpsert(created), nil)
}

func (s *Server) handlePatchTariff(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if _, err := s.stores.Tariffs.Patch(c.Param("tariff_id"), patch, nil); err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, nil)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.stores.Sessions.Get(c.Param("session_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, session)
}

func (s *Server) handlePutSession(c *gin.Context) {
	var session store.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid session object: "+err.Error())
		return
	}
	if !bindIdentity(c, &session.ID, "session_id", &session.CountryCode, &session.PartyID) {
		return
	}

	_, created, err := s.stores.Sessions.AddOrUpdate(&session, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, statusForUpsert(created), nil)
}

func (s *Server) handlePatchSession(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if _, err := s.stores.Sessions.Patch(c.Param("session_id"), patch, nil); err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, nil)
}

func (s *Server) handleGetToken(c *gin.Context) {
	token, err := s.stores.Tokens.Get(c.Param("token_uid"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, token)
}

func (s *Server) handlePutToken(c *gin.Context) {
	var token store.Token
	if err := c.ShouldBindJSON(&token); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid token object: "+err.Error())
		return
	}
	if !bindIdentity(c, &token.UID, "token_uid", &token.CountryCode, &token.PartyID) {
		return
	}

	_, created, err := s.stores.Tokens.AddOrUpdate(&token, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, statusForUpsert(created), nil)
}

func (s *Server) handlePatchToken(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}
	if _, err := s.stores.Tokens.Patch(c.Param("token_uid"), patch, nil); err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, nil)
}

func (s *Server) handleGetCDR(c *gin.Context) {
	cdr, err := s.stores.CDRs.Get(c.Param("cdr_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondData(c, http.StatusOK, cdr)
}

// handlePostCDR stores a new charge detail record. CDRs are immutable: a
// duplicate id is a conflict, never an update. The response carries the
// record's URL in the Location header and no body data.
func (s *Server) handlePostCDR(c *gin.Context) {
	var cdr store.CDR
	if err := c.ShouldBindJSON(&cdr); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid cdr object: "+err.Error())
		return
	}
	if cdr.ID == "" {
		cdr.ID = uuid.New().String()
	}

	if _, err := s.stores.CDRs.Add(&cdr); err != nil {
		respondStoreError(c, err)
		return
	}

	location := fmt.Sprintf("%s%s/%s",
		strings.TrimRight(s.config.OCPI.ExternalURL, "/"),
		strings.TrimPrefix(c.Request.URL.Path, s.config.OCPI.PathPrefix),
		cdr.ID,
	)
	c.Header("Location", location)
	respondData(c, http.StatusCreated, nil)
}

// handleCommand acknowledges command requests without executing them.
// The module is advertised for interoperability; execution is not offered.
func (s *Server) handleCommand(c *gin.Context) {
	respondError(c, http.StatusOK, ocpi.StatusNotSupported,
		"command "+c.Param("command")+" is not supported")
}
