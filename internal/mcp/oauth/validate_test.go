package oauth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/giantswarm/mcp-oauth/storage/memory"
)

func TestNewValidator_RequiresResource(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	_, err := NewValidator(ValidatorConfig{Store: store})
	if err == nil {
		t.Error("NewValidator() should fail without a resource")
	}
}

func TestNewValidator_RequiresStore(t *testing.T) {
	_, err := NewValidator(ValidatorConfig{Resource: "https://mcp.example.com"})
	if err == nil {
		t.Error("NewValidator() should fail without a token store")
	}
}

func TestValidator_MissingHeader(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	validator, err := NewValidator(ValidatorConfig{
		Resource: "https://mcp.example.com",
		Store:    store,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	wrappedHandler := validator.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("ValidateGoogleToken() should set WWW-Authenticate header")
	}
}

func TestValidator_InvalidFormat(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	validator, err := NewValidator(ValidatorConfig{
		Resource: "https://mcp.example.com",
		Store:    store,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	wrappedHandler := validator.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestValidator_InvalidToken(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userinfo.Close()

	store := memory.New()
	defer store.Stop()

	validator, err := NewValidator(ValidatorConfig{
		Resource:         "https://mcp.example.com",
		Store:            store,
		UserinfoEndpoint: userinfo.URL,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	wrappedHandler := validator.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestValidator_ValidToken(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"108234","email":"user@example.com","email_verified":true,"name":"Test User"}`))
	}))
	defer userinfo.Close()

	store := memory.New()
	defer store.Stop()

	validator, err := NewValidator(ValidatorConfig{
		Resource:         "https://mcp.example.com",
		Store:            store,
		UserinfoEndpoint: userinfo.URL,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	var handlerCalled bool
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true

		userInfo, ok := GetUserFromContext(r.Context())
		if !ok || userInfo == nil {
			t.Error("User info should be in request context")
			return
		}
		if userInfo.Email != "user@example.com" {
			t.Errorf("User email = %q, want %q", userInfo.Email, "user@example.com")
		}

		token, ok := GetGoogleTokenFromContext(r.Context())
		if !ok || token == nil {
			t.Error("Google token should be in request context")
			return
		}
		if token.AccessToken != "valid-token" {
			t.Errorf("Access token = %q, want %q", token.AccessToken, "valid-token")
		}

		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := validator.ValidateGoogleToken(testHandler)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ValidateGoogleToken() status = %d, want %d", w.Code, http.StatusOK)
	}
	if !handlerCalled {
		t.Error("Inner handler should be called for a valid token")
	}

	// The validated token is saved under the user's email so Gmail clients
	// can find it by account.
	saved, err := store.GetToken(req.Context(), "user@example.com")
	if err != nil {
		t.Fatalf("Token should be saved to store: %v", err)
	}
	if saved.AccessToken != "valid-token" {
		t.Errorf("Saved access token = %q, want %q", saved.AccessToken, "valid-token")
	}
}

func TestValidator_CachesValidation(t *testing.T) {
	var hits atomic.Int64
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"108234","email":"user@example.com","email_verified":true}`))
	}))
	defer userinfo.Close()

	store := memory.New()
	defer store.Stop()

	validator, err := NewValidator(ValidatorConfig{
		Resource:         "https://mcp.example.com",
		Store:            store,
		UserinfoEndpoint: userinfo.URL,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	wrappedHandler := validator.ValidateGoogleToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Authorization", "Bearer cached-token")
		w := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("Userinfo endpoint hits = %d, want 1 (validation should be cached)", got)
	}
}

func TestGetUserFromContext_Missing(t *testing.T) {
	user, ok := GetUserFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if ok || user != nil {
		t.Error("GetUserFromContext() should report no user for a bare context")
	}
}

func TestGetGoogleTokenFromContext_Missing(t *testing.T) {
	token, ok := GetGoogleTokenFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if ok || token != nil {
		t.Error("GetGoogleTokenFromContext() should report no token for a bare context")
	}
}
