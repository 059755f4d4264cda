package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rmclink/cip"
	"rmclink/config"
	"rmclink/gateway"
	"rmclink/rmc"
)

// okTransport answers every explicit request with a bare success reply.
type okTransport struct{ writes int }

func (o *okTransport) Connect() error    { return nil }
func (o *okTransport) Disconnect() error { return nil }

func (o *okTransport) SendExplicit(service byte, path cip.EPath_t, data []byte) (*cip.Response, error) {
	if service == cip.SvcSetAttributeSingle {
		o.writes++
	}
	return &cip.Response{ReplyService: service | cip.ReplyMask}, nil
}

func testServer(t *testing.T, users []config.WebUser) (*Server, *okTransport) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Controller.Address = "192.168.0.10"
	cfg.Registers = []config.RegisterGroup{
		{Name: "setpoints", Address: "F56:0", Count: 4, Type: "float", Writable: true},
	}
	cfg.Web.Users = users
	cfg.Web.SessionSecret = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

	ot := &okTransport{}
	client := rmc.NewClient(cfg.Controller.Address, rmc.WithTransport(ot))
	client.Connect()
	gw := gateway.NewWithClient(cfg, client)

	return NewServer(&cfg.Web, gw), ot
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, srv *Server, username, password string) []*http.Cookie {
	t.Helper()

	rec := doJSON(t, srv, "POST", "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestOpenModeNoUsers(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doJSON(t, srv, "GET", "/api/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status endpoint = %d, want 200", rec.Code)
	}

	// Writes are open too when nobody is configured.
	rec = doJSON(t, srv, "POST", "/api/registers/setpoints/write",
		map[string]any{"index": 1, "value": 2.5}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("write = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := testServer(t, []config.WebUser{
		{Username: "op", PasswordHash: mustHash(t, "secret"), Role: config.RoleAdmin},
	})

	rec := doJSON(t, srv, "GET", "/api/status", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, "POST", "/api/login",
		map[string]string{"username": "op", "password": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password login = %d, want 401", rec.Code)
	}

	cookies := login(t, srv, "op", "secret")
	rec = doJSON(t, srv, "GET", "/api/status", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}

	var st gateway.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Controller != "192.168.0.10" {
		t.Errorf("controller = %q", st.Controller)
	}
}

func TestViewerCannotWrite(t *testing.T) {
	srv, ot := testServer(t, []config.WebUser{
		{Username: "admin", PasswordHash: mustHash(t, "adminpw"), Role: config.RoleAdmin},
		{Username: "eyes", PasswordHash: mustHash(t, "viewerpw"), Role: config.RoleViewer},
	})

	viewer := login(t, srv, "eyes", "viewerpw")

	rec := doJSON(t, srv, "GET", "/api/registers", nil, viewer)
	if rec.Code != http.StatusOK {
		t.Errorf("viewer read = %d, want 200", rec.Code)
	}

	rec = doJSON(t, srv, "POST", "/api/registers/setpoints/write",
		map[string]any{"index": 0, "value": 1}, viewer)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer write = %d, want 403", rec.Code)
	}
	if ot.writes != 0 {
		t.Errorf("viewer write reached the controller")
	}

	admin := login(t, srv, "admin", "adminpw")
	rec = doJSON(t, srv, "POST", "/api/registers/setpoints/write",
		map[string]any{"index": 0, "value": 1}, admin)
	if rec.Code != http.StatusOK {
		t.Errorf("admin write = %d, body %s", rec.Code, rec.Body.String())
	}
	if ot.writes != 1 {
		t.Errorf("controller writes = %d, want 1", ot.writes)
	}
}

func TestWriteValidation(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doJSON(t, srv, "POST", "/api/registers/nope/write",
		map[string]any{"index": 0, "value": 1}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown group write = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, "POST", "/api/registers/setpoints/write",
		map[string]any{"index": 99, "value": 1}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range write = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/registers/setpoints/write",
		bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body write = %d, want 400", rec2.Code)
	}
}

func TestUnknownGroupNotFound(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doJSON(t, srv, "GET", "/api/registers/ghost", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown group = %d, want 404", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	srv, _ := testServer(t, []config.WebUser{
		{Username: "op", PasswordHash: mustHash(t, "secret"), Role: config.RoleAdmin},
	})

	cookies := login(t, srv, "op", "secret")

	rec := doJSON(t, srv, "POST", "/api/logout", nil, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout = %d", rec.Code)
	}

	// The logout response carries the expired cookie.
	expired := rec.Result().Cookies()
	rec = doJSON(t, srv, "GET", "/api/status", nil, expired)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", rec.Code)
	}
}

func TestPasswordHashing(t *testing.T) {
	h := mustHash(t, "hunter2")
	if h == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !checkPassword("hunter2", h) {
		t.Error("correct password rejected")
	}
	if checkPassword("hunter3", h) {
		t.Error("wrong password accepted")
	}
}
