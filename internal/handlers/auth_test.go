package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"smartdoor/internal/service"
)

func TestAuthHandlers_SignUpAndSignIn(t *testing.T) {
	auth := &mockAuth{signUpID: 42, genTokenToken: "tok-123"}
	s := &service.Service{Authorization: auth}
	r := newTestRouter(s, &mockDoor{}, &mockProvisioner{})

	// sign-up happy path
	body := bytes.NewBufferString(`{"username":"admin","password":"secret"}`)
	w := doRequest(r, http.MethodPost, "/auth/sign-up", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sign-up status=%d, body=%s", w.Code, w.Body.String())
	}
	var signUpResp struct {
		ID int `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &signUpResp)
	if signUpResp.ID != 42 {
		t.Fatalf("expected id=42, got %d", signUpResp.ID)
	}
	if auth.lastSignUpUsername != "admin" || auth.lastSignUpPassword != "secret" {
		t.Fatalf("credentials not passed through: %q/%q", auth.lastSignUpUsername, auth.lastSignUpPassword)
	}

	// missing fields → 400
	body = bytes.NewBufferString(`{"username":"admin"}`)
	w = doRequest(r, http.MethodPost, "/auth/sign-up", body, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", w.Code)
	}

	// sign-in happy path
	body = bytes.NewBufferString(`{"username":"admin","password":"secret"}`)
	w = doRequest(r, http.MethodPost, "/auth/sign-in", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status=%d, body=%s", w.Code, w.Body.String())
	}
	var signInResp struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &signInResp)
	if signInResp.Token != "tok-123" {
		t.Fatalf("expected token, got %q", signInResp.Token)
	}
}

func TestAuthHandlers_SignInRejectsBadCredentials(t *testing.T) {
	auth := &mockAuth{genTokenErr: errors.New("no such user")}
	s := &service.Service{Authorization: auth}
	r := newTestRouter(s, &mockDoor{}, &mockProvisioner{})

	body := bytes.NewBufferString(`{"username":"admin","password":"wrong"}`)
	w := doRequest(r, http.MethodPost, "/auth/sign-in", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_RejectsMalformedAuthorization(t *testing.T) {
	auth := &mockAuth{parseErr: errors.New("bad token")}
	s := &service.Service{Authorization: auth}
	r := newTestRouter(s, &mockDoor{}, &mockProvisioner{})

	// malformed header format
	w := doRequest(r, http.MethodGet, "/api/v1/door/state", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	// bearer token present but rejected by the parser
	w = doRequest(r, http.MethodGet, "/api/v1/door/state", nil, "garbage")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", w.Code)
	}
	if auth.lastParseToken != "garbage" {
		t.Fatalf("token not forwarded to parser: %q", auth.lastParseToken)
	}
}
