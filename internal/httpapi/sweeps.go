package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"voice-reminders/internal/goals"
	"voice-reminders/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultSweepLockTTL = 5 * time.Minute

// RequireBearerSecret guards the sweep triggers. An empty secret rejects
// every request.
func RequireBearerSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		tok, found := strings.CutPrefix(raw, "Bearer ")
		if secret == "" || !found || !secretsEqual(strings.TrimSpace(tok), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h Handlers) ReconcileSweep(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	h.runSweep(c, "reconcile", h.Goals.ReconcileSweep)
}

func (h Handlers) ExpireSweep(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	h.runSweep(c, "expire", h.Goals.ExpireSweep)
}

func (h Handlers) runSweep(c *gin.Context, name string, sweep func(context.Context) (goals.SweepReport, error)) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	if h.Locker != nil {
		ttl := h.SweepLockTTL
		if ttl <= 0 {
			ttl = defaultSweepLockTTL
		}
		release, ok, err := h.Locker.TryLock(ctx, "sweep:"+name, ttl)
		switch {
		case err != nil:
			// sweeps are idempotent; run unlocked rather than skip
			log.Warn("sweep lock unavailable", "sweep", name, "err", err)
		case !ok:
			c.JSON(http.StatusOK, gin.H{"message": "sweep already running"})
			return
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("sweep lock release failed", "sweep", name, "err", err)
				}
			}()
		}
	}

	report, err := sweep(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": report.Message(), "report": report})
}
