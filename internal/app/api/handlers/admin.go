package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
	"github.com/fatflowers/subtrack/pkg/response"
)

// @Summary      Scan Canonical Entities (Admin)
// @Description  Retrieves a paginated and filterable list of canonical entities. Name columns are returned as stored (encrypted).
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body canonical.ScanRequest true "Scan request with filters, pagination, and sorting"
// @Success      200  {object}  response.APIResponse[canonical.ScanResponse]
// @Router       /api/v1/admin/canonical/scan [post]
func ApiScanCanonicalEntities(svc *canonical.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req canonical.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanCanonicalEntities(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *canonical.Service) {
	r.POST("/canonical/scan", ApiScanCanonicalEntities(svc))
}
