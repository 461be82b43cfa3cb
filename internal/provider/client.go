// internal/provider/client.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
)

// Wire error codes the provider returns in its error envelope.
const (
	wireCodeRateLimitedDaily  = "rate_limited_daily"
	wireCodeRateLimitedWeekly = "rate_limited_weekly"
	wireCodeDisconnected      = "account_disconnected"
	wireCodeInvalidTarget     = "invalid_target"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the messaging provider's REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithFields(map[string]interface{}{"component": "provider"}),
	}
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type profileResponse struct {
	ProviderID      string `json:"provider_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	NetworkDistance string `json:"network_distance"`
	Invitation      *struct {
		Status string `json:"status"`
	} `json:"invitation,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type chatListResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

type acceptanceResponse struct {
	Status string `json:"status"`
}

func (c *Client) ResolveIdentifier(ctx context.Context, accountRef, rawHandle string) (*Profile, error) {
	var resp profileResponse
	path := fmt.Sprintf("/api/v1/users/%s?account_id=%s", url.PathEscape(rawHandle), url.QueryEscape(accountRef))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	profile := &Profile{
		ProviderID:       resp.ProviderID,
		FirstName:        resp.FirstName,
		LastName:         resp.LastName,
		AlreadyConnected: resp.NetworkDistance == "FIRST_DEGREE",
	}
	if resp.Invitation != nil {
		profile.InvitePending = resp.Invitation.Status == "PENDING"
		profile.InviteWithdrawn = resp.Invitation.Status == "WITHDRAWN"
	}
	return profile, nil
}

func (c *Client) SendInitialContact(ctx context.Context, accountRef, targetID, message string) (string, error) {
	body := map[string]string{
		"account_id":  accountRef,
		"provider_id": targetID,
		"message":     message,
	}

	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/invite", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) FindConversation(ctx context.Context, accountRef, targetID string) (string, error) {
	var resp chatListResponse
	path := fmt.Sprintf("/api/v1/chats?account_id=%s&attendee_id=%s", url.QueryEscape(accountRef), url.QueryEscape(targetID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	if len(resp.Items) == 0 {
		return "", apperrors.NewInvalidTargetError(targetID)
	}
	return resp.Items[0].ID, nil
}

func (c *Client) SendFollowUp(ctx context.Context, accountRef, conversationRef, message string) (string, error) {
	body := map[string]string{
		"account_id": accountRef,
		"text":       message,
	}

	var resp sendResponse
	path := fmt.Sprintf("/api/v1/chats/%s/messages", url.PathEscape(conversationRef))
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) GetAcceptanceStatus(ctx context.Context, accountRef, targetID string) (AcceptanceStatus, error) {
	var resp acceptanceResponse
	path := fmt.Sprintf("/api/v1/users/invite/%s?account_id=%s", url.PathEscape(targetID), url.QueryEscape(accountRef))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case "ACCEPTED":
		return AcceptanceAccepted, nil
	case "DECLINED", "WITHDRAWN", "EXPIRED":
		return AcceptanceDeclined, nil
	default:
		return AcceptancePending, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewTransientSendError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return c.classify(resp.StatusCode, envelope)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewTransientSendError(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// classify maps provider wire codes to the engine's error taxonomy. The
// accountRef is carried by callers in context fields, so details here
// stay at the wire-code level.
func (c *Client) classify(status int, envelope errorEnvelope) error {
	switch envelope.Code {
	case wireCodeRateLimitedDaily:
		return apperrors.NewDailyQuotaExceededError(envelope.Message)
	case wireCodeRateLimitedWeekly:
		return apperrors.NewWeeklyQuotaExceededError(envelope.Message)
	case wireCodeDisconnected:
		return apperrors.NewAccountDisconnectedError(envelope.Message)
	case wireCodeInvalidTarget:
		return apperrors.NewInvalidTargetError(envelope.Message)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.NewAccountDisconnectedError(envelope.Message)
	case http.StatusNotFound:
		return apperrors.NewInvalidTargetError(envelope.Message)
	case http.StatusTooManyRequests:
		return apperrors.NewDailyQuotaExceededError(envelope.Message)
	}

	c.logger.Warn("unclassified provider error", map[string]interface{}{
		"status": status,
		"code":   envelope.Code,
	})
	return apperrors.NewTransientSendError(fmt.Errorf("provider status %d: %s", status, envelope.Message))
}
