package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/phone"
)

// ErrNotConfigured is returned by Send when no access token or phone number id is set.
var ErrNotConfigured = errors.New("whatsapp delivery not configured")

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	region        string
	http          *http.Client
	log           *logger.Logger
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// ClientConfig combines the settings the client needs.
type ClientConfig interface {
	config.WhatsAppConfig
	GetDefaultPhoneRegion() string
}

func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.GetWhatsAppAPIBaseURL(), "/"),
		accessToken:   cfg.GetWhatsAppAccessToken(),
		phoneNumberID: cfg.GetWhatsAppPhoneNumberID(),
		region:        cfg.GetDefaultPhoneRegion(),
		http:          &http.Client{Timeout: 15 * time.Second},
		log:           log,
	}
}

// Send delivers text to the user identified by its WhatsApp id.
func (c *Client) Send(ctx context.Context, userID, text string) error {
	if c.accessToken == "" || c.phoneNumberID == "" {
		return ErrNotConfigured
	}

	to := phone.WhatsAppID(userID, c.region)
	if to == "" {
		return fmt.Errorf("invalid recipient %q", userID)
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp reply sent", "to", to)
	return nil
}
