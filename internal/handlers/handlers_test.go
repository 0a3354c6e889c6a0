package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"address": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "nope"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-123")

			handleServiceError(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var resp models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Body is not an error envelope: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("Expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("Expected request id echoed, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handleServiceError(rec, req, &services.ValidationError{Fields: map[string]string{"name": "Name is required"}})

	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Body is not an error envelope: %v", err)
	}
	if resp.Error.Fields["name"] != "Name is required" {
		t.Errorf("Expected field error preserved, got %+v", resp.Error.Fields)
	}
}

func TestSetupStream_Unauthenticated(t *testing.T) {
	h := NewStreamHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/setup-stream", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.SetupStream(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without an authenticated user, got %d", rec.Code)
	}
}

func TestAuthLogin_InvalidBody(t *testing.T) {
	h := NewAuthHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}
