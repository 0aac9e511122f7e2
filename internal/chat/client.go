package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Client talks to the external chat service that hosts buyer/seller
// conversations. A nil Client is a no-op; channels are then only recorded
// in the local table.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type createChannelRequest struct {
	LeadID       string `json:"leadId"`
	SellerID     string `json:"sellerId"`
	BuyerID      string `json:"buyerId"`
	ContactPhone string `json:"contactPhone,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

type createChannelResponse struct {
	ChannelID string `json:"channelId"`
}

// NewClient creates a chat service client, or nil when chat is disabled.
func NewClient(cfg config.ChatConfig, log *logger.Logger) *Client {
	if !cfg.IsChatEnabled() || cfg.GetChatServiceURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetChatServiceURL(), "/"),
		token:   cfg.GetChatServiceToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// CreateChannel creates the conversation on the chat service and returns its
// external id. The chat service deduplicates on (leadId, sellerId), so
// replays are safe.
func (c *Client) CreateChannel(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, contactPhone, contactEmail string) (string, error) {
	if c == nil {
		return "", nil
	}

	payload := createChannelRequest{
		LeadID:       leadID.String(),
		SellerID:     sellerID.String(),
		BuyerID:      buyerID.String(),
		ContactPhone: contactPhone,
		ContactEmail: contactEmail,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	url := fmt.Sprintf("%s/channels", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out createChannelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	c.log.Info("chat channel created", "leadId", payload.LeadID, "sellerId", payload.SellerID)
	return out.ChannelID, nil
}
