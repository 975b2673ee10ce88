package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/goals"
	"voice-reminders/internal/telephony"
	"voice-reminders/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const maxCallbackBody = 1 << 20

func secretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// callbackGoalID accepts the remote job's JSON body, a form body, or ?goal_id=.
func callbackGoalID(c *gin.Context, body []byte) string {
	if gjson.ValidBytes(body) {
		if v := gjson.GetBytes(body, "goal_id"); v.Exists() {
			return v.String()
		}
	}
	if form, err := url.ParseQuery(string(body)); err == nil {
		if v := form.Get("goal_id"); v != "" {
			return v
		}
	}
	return c.Query("goal_id")
}

// ExecuteGoal is the remote scheduler's callback. Only malformed input and
// unknown goals answer 4xx; everything else is logged as a CallLog first.
func (h Handlers) ExecuteGoal(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	log := logger.FromGin(c)

	if h.CallbackSecret != "" && !secretsEqual(c.GetHeader(cronjob.CallbackSecretHeader), h.CallbackSecret) {
		log.Warn("execution callback with bad secret", "client_ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	goalID := strings.TrimSpace(callbackGoalID(c, body))
	if goalID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "goal_id required"})
		return
	}

	res, err := h.Goals.ExecuteGoal(c.Request.Context(), goalID)
	if err != nil {
		switch {
		case errors.Is(err, goals.ErrInvalidGoalID):
			log.Warn("execution callback with malformed goal id", "goal_id", goalID)
		case errors.Is(err, goals.ErrGoalNotFound):
			log.Warn("execution callback for unknown goal", "goal_id", goalID)
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// VoiceWebhook receives call outcomes from the voice provider.
func (h Handlers) VoiceWebhook(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	log := logger.FromGin(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	outcome, err := telephony.ParseCallOutcome(body)
	if err != nil {
		log.Warn("voice webhook rejected", "err", err)
		abortWithError(c, err)
		return
	}

	l, err := h.Goals.ReconcileCallStatus(c.Request.Context(), outcome)
	if errors.Is(err, goals.ErrCallLogNotFound) {
		// unknown calls are acknowledged so the provider stops retrying
		log.Warn("voice webhook for unknown call", "call_id", outcome.CallID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "call_id": outcome.CallID})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "call_id": l.CallID, "call_status": l.Status})
}
