package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/pkg/response"
)

const healthTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck struct {
	Name string
	// Optional checks report "degraded" instead of failing the endpoint.
	Optional bool
	Ping     func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health reports "ok" when every check passes. A failing required check turns
// the response into a 503 so load balancers stop routing to the instance.
func Health(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
		defer cancel()

		payload := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, check := range checks {
			if check.Ping == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				if check.Optional {
					payload.Checks[check.Name] = "degraded"
					if payload.Status == "ok" {
						payload.Status = "degraded"
					}
					continue
				}
				payload.Checks[check.Name] = "down"
				payload.Status = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			payload.Checks[check.Name] = "up"
		}

		response.Success(c, status, payload)
	}
}

// DatabaseCheck is the required check for the primary database.
func DatabaseCheck(db *gorm.DB) HealthCheck {
	return HealthCheck{
		Name: "database",
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}
