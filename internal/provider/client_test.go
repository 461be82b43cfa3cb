// internal/provider/client_test.go
package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, logger.NewTestLogger(t))
	return client, server
}

func TestResolveIdentifier(t *testing.T) {
	tests := []struct {
		name          string
		response      map[string]interface{}
		wantConnected bool
		wantPending   bool
		wantWithdrawn bool
	}{
		{
			name: "second degree contact",
			response: map[string]interface{}{
				"provider_id":      "u-100",
				"first_name":       "Ada",
				"last_name":        "Lovelace",
				"network_distance": "SECOND_DEGREE",
			},
		},
		{
			name: "already connected",
			response: map[string]interface{}{
				"provider_id":      "u-101",
				"network_distance": "FIRST_DEGREE",
			},
			wantConnected: true,
		},
		{
			name: "invite pending",
			response: map[string]interface{}{
				"provider_id":      "u-102",
				"network_distance": "SECOND_DEGREE",
				"invitation":       map[string]string{"status": "PENDING"},
			},
			wantPending: true,
		},
		{
			name: "invite withdrawn",
			response: map[string]interface{}{
				"provider_id":      "u-103",
				"network_distance": "SECOND_DEGREE",
				"invitation":       map[string]string{"status": "WITHDRAWN"},
			},
			wantWithdrawn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
				assert.Equal(t, http.MethodGet, r.Method)
				json.NewEncoder(w).Encode(tt.response)
			})

			profile, err := client.ResolveIdentifier(context.Background(), "acc-1", "ada-lovelace")
			require.NoError(t, err)
			assert.Equal(t, tt.response["provider_id"], profile.ProviderID)
			assert.Equal(t, tt.wantConnected, profile.AlreadyConnected)
			assert.Equal(t, tt.wantPending, profile.InvitePending)
			assert.Equal(t, tt.wantWithdrawn, profile.InviteWithdrawn)
		})
	}
}

func TestSendInitialContact(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/invite", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acc-1", body["account_id"])
		assert.Equal(t, "u-100", body["provider_id"])
		assert.Equal(t, "Hi Ada", body["message"])

		json.NewEncoder(w).Encode(map[string]string{"id": "inv-55"})
	})

	id, err := client.SendInitialContact(context.Background(), "acc-1", "u-100", "Hi Ada")
	require.NoError(t, err)
	assert.Equal(t, "inv-55", id)
}

func TestFindConversation(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/chats", r.URL.Path)
			assert.Equal(t, "u-100", r.URL.Query().Get("attendee_id"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{{"id": "chat-1"}, {"id": "chat-2"}},
			})
		})

		chatID, err := client.FindConversation(context.Background(), "acc-1", "u-100")
		require.NoError(t, err)
		assert.Equal(t, "chat-1", chatID)
	})

	t.Run("no conversation", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
		})

		_, err := client.FindConversation(context.Background(), "acc-1", "u-100")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidTarget))
	})
}

func TestSendFollowUp(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chats/chat-9/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Following up", body["text"])

		json.NewEncoder(w).Encode(map[string]string{"id": "msg-3"})
	})

	id, err := client.SendFollowUp(context.Background(), "acc-1", "chat-9", "Following up")
	require.NoError(t, err)
	assert.Equal(t, "msg-3", id)
}

func TestGetAcceptanceStatus(t *testing.T) {
	tests := []struct {
		wire string
		want AcceptanceStatus
	}{
		{"ACCEPTED", AcceptanceAccepted},
		{"PENDING", AcceptancePending},
		{"DECLINED", AcceptanceDeclined},
		{"WITHDRAWN", AcceptanceDeclined},
		{"EXPIRED", AcceptanceDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": tt.wire})
			})

			status, err := client.GetAcceptanceStatus(context.Background(), "acc-1", "u-100")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wireCode string
		wantCode apperrors.ErrorCode
	}{
		{"daily rate limit", http.StatusUnprocessableEntity, "rate_limited_daily", apperrors.ErrCodeQuotaDailyExceeded},
		{"weekly rate limit", http.StatusUnprocessableEntity, "rate_limited_weekly", apperrors.ErrCodeQuotaWeeklyExceeded},
		{"disconnected by code", http.StatusUnprocessableEntity, "account_disconnected", apperrors.ErrCodeAccountDisconnected},
		{"invalid target by code", http.StatusBadRequest, "invalid_target", apperrors.ErrCodeInvalidTarget},
		{"unauthorized", http.StatusUnauthorized, "", apperrors.ErrCodeAccountDisconnected},
		{"forbidden", http.StatusForbidden, "", apperrors.ErrCodeAccountDisconnected},
		{"not found", http.StatusNotFound, "", apperrors.ErrCodeInvalidTarget},
		{"throttled without code", http.StatusTooManyRequests, "", apperrors.ErrCodeQuotaDailyExceeded},
		{"server error", http.StatusInternalServerError, "", apperrors.ErrCodeTransientSend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"code": tt.wireCode, "message": "boom"})
			})

			_, err := client.SendInitialContact(context.Background(), "acc-1", "u-100", "hi")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: time.Second,
	}, logger.NewNoOpLogger())

	_, err := client.SendInitialContact(context.Background(), "acc-1", "u-100", "hi")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransientSend))
}
