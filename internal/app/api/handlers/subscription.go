package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subtrack/internal/app/service/record"
	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/response"
	"github.com/fatflowers/subtrack/pkg/types"
)

// userIDHeader carries the caller's identity. Authentication is handled
// upstream of this service.
const userIDHeader = "X-User-ID"

func userIDFrom(c *gin.Context) string {
	return c.GetHeader(userIDHeader)
}

type ListChainsResponse struct {
	Items []*record.ChainView `json:"items"`
	Total int                 `json:"total"`
}

// @Summary      List subscription chains
// @Description  Groups the user's records into subscription chains and classifies each one.
// @Tags         Subscriptions
// @Produce      json
// @Param        status query string false "Filter by chain status (active/upcoming/expired)"
// @Success      200  {object}  response.APIResponse[ListChainsResponse]
// @Router       /api/v1/subscriptions [get]
func ApiListChains(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		status := types.ChainStatus(c.Query("status"))
		views, err := svc.ListChains(c.Request.Context(), userID, status)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListChainsResponse{Items: views, Total: len(views)}))
	}
}

type ListRawResponse struct {
	Items []*models.SubscriptionRecord `json:"items"`
	Total int64                        `json:"total"`
}

// @Summary      List raw subscription records
// @Description  Returns ungrouped records filtered by year/month or an explicit date range.
// @Tags         Subscriptions
// @Produce      json
// @Param        year   query int    false "Billing year (default: current year)"
// @Param        month  query int    false "Billing month"
// @Param        start_date query string false "Range start (YYYY-MM-DD)"
// @Param        end_date   query string false "Range end (YYYY-MM-DD)"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200  {object}  response.APIResponse[ListRawResponse]
// @Router       /api/v1/subscriptions/raw [get]
func ApiListRaw(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		var q record.RawQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		items, total, err := svc.ListRaw(c.Request.Context(), userID, &q)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListRawResponse{Items: items, Total: total}))
	}
}

// @Summary      Subscription spend statistics
// @Description  Projects annual and monthly-average cost per currency over live chains.
// @Tags         Subscriptions
// @Produce      json
// @Success      200  {object}  response.APIResponse[record.StatsResult]
// @Router       /api/v1/subscriptions/stats [get]
func ApiStats(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		res, err := svc.Stats(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type InsertBatchResponse struct {
	Results []*record.BatchItemResult `json:"results"`
}

// @Summary      Insert subscription records
// @Description  Accepts a single record object or a JSON array for batch insert. Batch items fail independently.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body record.InsertRequest true "Record to insert (or a JSON array of them)"
// @Success      200  {object}  response.APIResponse[InsertBatchResponse]
// @Router       /api/v1/subscriptions [post]
func ApiInsertSubscriptions(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		// A leading '[' means batch; anything else binds as one record.
		trimmed := bytes.TrimLeft(body, " \t\r\n")
		var reqs []*record.InsertRequest
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(body, &reqs); err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
		} else {
			var single record.InsertRequest
			if err := json.Unmarshal(body, &single); err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			reqs = []*record.InsertRequest{&single}
		}

		results, err := svc.InsertBatch(c.Request.Context(), userID, reqs)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&InsertBatchResponse{Results: results}))
	}
}

// @Summary      Update a subscription record
// @Description  Merges the given fields into the record; identity changes propagate to the canonical entity.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id      path string               true "Record ID"
// @Param        request body record.UpdateRequest true "Fields to change"
// @Success      200  {object}  response.APIResponse[models.SubscriptionRecord]
// @Router       /api/v1/subscriptions/{id} [patch]
func ApiUpdateSubscription(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		var req record.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		rec, err := svc.Update(c.Request.Context(), userID, c.Param("id"), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

type DeleteSubscriptionsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type DeleteSubscriptionsResponse struct {
	Deleted int64 `json:"deleted"`
}

// @Summary      Delete subscription records
// @Description  Deletes records by id. Canonical entities are kept.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body DeleteSubscriptionsRequest true "Record ids to delete"
// @Success      200  {object}  response.APIResponse[DeleteSubscriptionsResponse]
// @Router       /api/v1/subscriptions [delete]
func ApiDeleteSubscriptions(svc *record.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFrom(c)
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user id"))
			return
		}
		var req DeleteSubscriptionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		deleted, err := svc.Delete(c.Request.Context(), userID, req.IDs)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&DeleteSubscriptionsResponse{Deleted: deleted}))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *record.Service) {
	r.GET("/subscriptions", ApiListChains(svc))
	r.GET("/subscriptions/raw", ApiListRaw(svc))
	r.GET("/subscriptions/stats", ApiStats(svc))
	r.POST("/subscriptions", ApiInsertSubscriptions(svc))
	r.PATCH("/subscriptions/:id", ApiUpdateSubscription(svc))
	r.DELETE("/subscriptions", ApiDeleteSubscriptions(svc))
}
