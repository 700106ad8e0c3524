package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm_assistant_backend/internal/assistant"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/phone"
	"crm_assistant_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	eventReceived      = "EVENT_RECEIVED"
	modeSubscribe      = "subscribe"
	verificationFailed = "Error de verificación"
)

// Dispatcher accepts inbound messages for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg assistant.Inbound)
}

// Handler serves the WhatsApp webhook.
type Handler struct {
	dispatcher  Dispatcher
	verifyToken string
	region      string
	val         *validator.Validator
	log         *logger.Logger
}

func NewHandler(dispatcher Dispatcher, verifyToken, region string, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{
		dispatcher:  dispatcher,
		verifyToken: verifyToken,
		region:      region,
		val:         val,
		log:         log,
	}
}

// HandleVerify answers the subscription handshake.
// GET /webhook?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")

	if mode == modeSubscribe && h.verifyToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) == 1 {
		h.log.Info("webhook verified")
		c.String(http.StatusOK, c.Query("hub.challenge"))
		return
	}

	h.log.Warn("webhook verification failed", "mode", mode)
	c.String(http.StatusForbidden, verificationFailed)
}

// HandleEvent accepts a notification and dispatches every text message in it,
// blank ones included so the user still gets an answer.
// It always acknowledges with 200 so the platform does not redeliver.
// POST /webhook
func (h *Handler) HandleEvent(c *gin.Context) {
	log := h.log.WithContext(c.Request.Context())

	raw, err := c.GetRawData()
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		c.String(http.StatusOK, eventReceived)
		return
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Warn("malformed webhook payload", "error", err)
		c.String(http.StatusOK, eventReceived)
		return
	}

	for _, m := range payload.textMessages() {
		if err := h.val.Struct(m); err != nil {
			log.Warn("dropping invalid message", "error", err)
			continue
		}
		userID := phone.WhatsAppID(m.From, h.region)
		if userID == "" {
			userID = m.From
		}
		log.Info("inbound message", "user_id", userID, "message_id", m.ID)

		h.dispatcher.Dispatch(c.Request.Context(), assistant.Inbound{
			MessageID:  m.ID,
			UserID:     userID,
			Text:       strings.TrimSpace(m.Text.Body),
			ReceivedAt: parseTimestamp(m.Timestamp),
		})
	}

	c.String(http.StatusOK, eventReceived)
}

// parseTimestamp reads the unix-seconds timestamp of a message; zero when absent.
func parseTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
