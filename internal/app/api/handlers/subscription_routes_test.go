package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterSubscriptionRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1")
	RegisterSubscriptionRoutes(g, nil)
	RegisterCanonicalRoutes(g, nil)
	RegisterAdminRoutes(g.Group("/admin"), nil)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("GET /api/v1/subscriptions"))
	require.True(t, contains("GET /api/v1/subscriptions/raw"))
	require.True(t, contains("GET /api/v1/subscriptions/stats"))
	require.True(t, contains("POST /api/v1/subscriptions"))
	require.True(t, contains("PATCH /api/v1/subscriptions/:id"))
	require.True(t, contains("DELETE /api/v1/subscriptions"))
	require.True(t, contains("POST /api/v1/canonical/resolve"))
	require.True(t, contains("PATCH /api/v1/canonical/:id"))
	require.True(t, contains("POST /api/v1/admin/canonical/scan"))
}
