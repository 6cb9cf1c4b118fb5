package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// The secret gate runs before any store access, so a Handler with a nil
// ban subsystem is safe for rejection-path tests.

func TestDisabledWithoutSecret(t *testing.T) {
	h := New(nil, "")

	for name, fn := range map[string]http.HandlerFunc{
		"create": h.HandleCreate,
		"unban":  h.HandleUnban,
		"list":   h.HandleList,
	} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("X-Admin-Secret", "anything")
		fn(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401 when no secret is configured", name, w.Code)
		}
	}
}

func TestWrongSecret(t *testing.T) {
	h := New(nil, testSecret)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	r.Header.Set("X-Admin-Secret", "wrong")
	h.HandleCreate(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	h.HandleCreate(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: status = %d, want 401", w.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	h := New(nil, testSecret)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		r.Header.Set("X-Admin-Secret", testSecret)
		h.HandleCreate(w, r)
		return w
	}

	if w := post("not json"); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
	if w := post(`{"kind":"ip","type":"soft"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing identifier/reason: status = %d, want 400", w.Code)
	}
	if w := post(`{"kind":"ip","identifier":"1.2.3.4","reason":"r","type":"medium"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", w.Code)
	}
	if w := post(`{"kind":"planet","identifier":"mars","reason":"r","type":"soft"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d, want 400", w.Code)
	}
}

func TestUnbanValidation(t *testing.T) {
	h := New(nil, testSecret)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"ip"}`))
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleUnban(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing identifier: status = %d, want 400", w.Code)
	}
}

func TestMethodEnforcement(t *testing.T) {
	h := New(nil, testSecret)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleCreate(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET create: status = %d, want 405", w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleList(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST list: status = %d, want 405", w.Code)
	}
}
