package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/store"
)

// handleGetLocation returns one location.
func (s *Server) handleGetLocation(c *gin.Context) {
	loc, err := s.stores.Locations.Get(c.Param("location_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, loc)
}

// handlePutLocation upserts a full location object. Identity fields are taken
// from the URL; a body that contradicts them is rejected.
func (s *Server) handlePutLocation(c *gin.Context) {
	var loc store.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid location object: "+err.Error())
		return
	}
	if !bindIdentity(c, &loc.ID, "location_id", &loc.CountryCode, &loc.PartyID) {
		return
	}

	_, created, err := s.stores.Locations.AddOrUpdate(&loc, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, statusForUpsert(created), nil)
}

// handlePatchLocation merge-patches a location.
func (s *Server) handlePatchLocation(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}

	if _, err := s.stores.Locations.Patch(c.Param("location_id"), patch, nil); err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}

// handleGetEvse returns one EVSE of a location.
func (s *Server) handleGetEvse(c *gin.Context) {
	loc, err := s.stores.Locations.Get(c.Param("location_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	evse := loc.Evse(c.Param("evse_uid"))
	if evse == nil {
		respondError(c, http.StatusNotFound, ocpi.StatusClientError, "not found")
		return
	}

	respondData(c, http.StatusOK, evse)
}

// handlePutEvse upserts an EVSE into its location, cascading timestamps.
func (s *Server) handlePutEvse(c *gin.Context) {
	var evse store.Evse
	if err := c.ShouldBindJSON(&evse); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid evse object: "+err.Error())
		return
	}
	uid := c.Param("evse_uid")
	if evse.UID != "" && evse.UID != uid {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "evse uid does not match URL")
		return
	}
	evse.UID = uid

	if err := s.stores.Locations.AddOrUpdateEvse(c.Param("location_id"), &evse, nil); err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}

// handlePatchEvse merge-patches an EVSE, cascading timestamps.
func (s *Server) handlePatchEvse(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}

	if _, err := s.stores.Locations.PatchEvse(c.Param("location_id"), c.Param("evse_uid"), patch, nil); err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}

// handleGetConnector returns one connector of an EVSE.
func (s *Server) handleGetConnector(c *gin.Context) {
	loc, err := s.stores.Locations.Get(c.Param("location_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	evse := loc.Evse(c.Param("evse_uid"))
	if evse == nil {
		respondError(c, http.StatusNotFound, ocpi.StatusClientError, "not found")
		return
	}
	connector := evse.Connector(c.Param("connector_id"))
	if connector == nil {
		respondError(c, http.StatusNotFound, ocpi.StatusClientError, "not found")
		return
	}

	respondData(c, http.StatusOK, connector)
}

// handlePutConnector upserts a connector, cascading timestamps to the EVSE
// and location.
func (s *Server) handlePutConnector(c *gin.Context) {
	var connector store.Connector
	if err := c.ShouldBindJSON(&connector); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid connector object: "+err.Error())
		return
	}
	id := c.Param("connector_id")
	if connector.ID != "" && connector.ID != id {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "connector id does not match URL")
		return
	}
	connector.ID = id

	err := s.stores.Locations.AddOrUpdateConnector(c.Param("location_id"), c.Param("evse_uid"), &connector, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}

// handlePatchConnector merge-patches a connector, cascading timestamps.
func (s *Server) handlePatchConnector(c *gin.Context) {
	patch, ok := bindPatch(c)
	if !ok {
		return
	}

	_, err := s.stores.Locations.PatchConnector(
		c.Param("location_id"), c.Param("evse_uid"), c.Param("connector_id"), patch, nil)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	respondData(c, http.StatusOK, nil)
}

// bindPatch decodes the request body as a JSON merge patch.
func bindPatch(c *gin.Context) (map[string]interface{}, bool) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "invalid patch object: "+err.Error())
		return nil, false
	}
	return patch, true
}

// bindIdentity stamps the URL identity onto the entity, rejecting bodies that
// carry a contradicting id, country code or party id.
func bindIdentity(c *gin.Context, id *string, idParam string, countryCode, partyID *string) bool {
	urlID := c.Param(idParam)
	urlCC := c.Param("country_code")
	urlPID := c.Param("party_id")

	if (*id != "" && *id != urlID) ||
		(*countryCode != "" && *countryCode != urlCC) ||
		(*partyID != "" && *partyID != urlPID) {
		respondError(c, http.StatusBadRequest, ocpi.StatusInvalidParameters, "object identity does not match URL")
		return false
	}

	*id = urlID
	*countryCode = urlCC
	*partyID = urlPID
	return true
}

// statusForUpsert maps creation to 201 and replacement to 200.
func statusForUpsert(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
