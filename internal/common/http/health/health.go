// Package health serves the readiness check shared by the services.
package health

import (
	"context"

	"github.com/gin-gonic/gin"

	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/response"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler answers 200 when every dependency responds and 503 otherwise.
func Handler(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		for name, dep := range deps {
			if err := dep.Ping(c.Request.Context()); err != nil {
				response.Error(c, appErr.Wrap(err, appErr.ServiceUnavailable).WithDetail("dependency", name))
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	}
}
