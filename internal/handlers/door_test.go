package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartdoor/internal/door"
	"smartdoor/internal/service"
)

func doRequest(r http.Handler, method, target string, body *bytes.Buffer, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vv := range authHeader(token) {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestDoorHandlers_OpenCloseState(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	settings := &mockSettings{}
	d := &mockDoor{state: door.StateClosed, connected: true, holdTime: 5}
	s := &service.Service{
		Authorization: auth,
		Settings:      settings,
	}
	r := newTestRouter(s, d, &mockProvisioner{})

	// state requires auth → 401 without header
	w := doRequest(r, http.MethodGet, "/api/v1/door/state", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	// with auth → 200 and state body
	w = doRequest(r, http.MethodGet, "/api/v1/door/state", nil, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d, body=%s", w.Code, w.Body.String())
	}
	var st struct {
		State       string `json:"state"`
		Connected   bool   `json:"connected"`
		HoldTimeSec int    `json:"hold_time_sec"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.State != "closed" || !st.Connected || st.HoldTimeSec != 5 {
		t.Fatalf("unexpected state body: %+v", st)
	}

	// POST /open → 200, requested, door command issued once
	w = doRequest(r, http.MethodPost, "/api/v1/door/open", nil, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("open status=%d, body=%s", w.Code, w.Body.String())
	}
	if d.openCalled != 1 {
		t.Fatalf("expected OpenDoor once, got %d", d.openCalled)
	}
	var resp struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != statusRequested {
		t.Fatalf("expected status %q, got %q", statusRequested, resp.Status)
	}

	// POST /close → 200
	w = doRequest(r, http.MethodPost, "/api/v1/door/close", nil, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("close status=%d", w.Code)
	}
	if d.closeCalled != 1 {
		t.Fatalf("expected CloseDoor once, got %d", d.closeCalled)
	}
}

func TestDoorHandlers_SetHoldTime(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	settings := &mockSettings{}
	d := &mockDoor{holdTime: 5}
	s := &service.Service{Authorization: auth, Settings: settings}
	r := newTestRouter(s, d, &mockProvisioner{})

	body := bytes.NewBufferString(`{"seconds":8}`)
	w := doRequest(r, http.MethodPut, "/api/v1/door/hold-time", body, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("hold-time status=%d, body=%s", w.Code, w.Body.String())
	}
	if d.holdTime != 8 {
		t.Fatalf("controller hold time not updated: %d", d.holdTime)
	}
	if settings.lastHoldTime != 8 {
		t.Fatalf("settings not persisted: %d", settings.lastHoldTime)
	}

	// negative seconds rejected by binding
	body = bytes.NewBufferString(`{"seconds":-1}`)
	w = doRequest(r, http.MethodPut, "/api/v1/door/hold-time", body, "valid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative seconds, got %d", w.Code)
	}
}
