package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
	"github.com/fatflowers/subtrack/pkg/response"
)

// @Summary      Resolve a raw subscription fact
// @Description  Maps extracted field values to their canonical identity, creating one when nothing matches. Entry point for ingestion pipelines.
// @Tags         Canonical
// @Accept       json
// @Produce      json
// @Param        request body canonical.RawFields true "Raw extracted field values"
// @Success      200  {object}  response.APIResponse[canonical.ResolvedIdentity]
// @Router       /api/v1/canonical/resolve [post]
func ApiResolveCanonical(svc *canonical.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		var raw canonical.RawFields
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		resolved, err := svc.Resolve(c.Request.Context(), userID, raw)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(resolved))
	}
}

// @Summary      Edit a canonical entity
// @Description  Merges the given fields into the canonical entity, re-derives its normalized key, and drops the user's cached resolutions.
// @Tags         Canonical
// @Accept       json
// @Produce      json
// @Param        id      path string                    true "Canonical entity ID"
// @Param        request body canonical.CanonicalUpdate true "Fields to change"
// @Success      200  {object}  response.APIResponse[canonical.ResolvedIdentity]
// @Router       /api/v1/canonical/{id} [patch]
func ApiUpdateCanonical(svc *canonical.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		var update canonical.CanonicalUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		resolved, err := svc.UpdateCanonical(c.Request.Context(), userID, c.Param("id"), update)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(resolved))
	}
}

func RegisterCanonicalRoutes(r gin.IRouter, svc *canonical.Service) {
	r.POST("/canonical/resolve", ApiResolveCanonical(svc))
	r.PATCH("/canonical/:id", ApiUpdateCanonical(svc))
}
