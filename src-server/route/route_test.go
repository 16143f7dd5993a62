package route_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/route"
	"busboard/src-server/utils"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestMux(t *testing.T) (*http.ServeMux, *utils.AppState) {
	t.Helper()
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "password123")

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	bundb := bun.NewDB(db, sqlitedialect.New())
	if err := model.Migrate(context.Background(), bundb); err != nil {
		t.Fatal(err)
	}

	as := &utils.AppState{
		Config:             utils.NewConfig(),
		RawDB:              db,
		BunDB:              bundb,
		MetricChans:        utils.NewMetric(),
		AppCloseSignalChan: make(chan os.Signal, 1),
	}

	// handlers block on the metric channels; drain them here since the
	// metric goroutines aren't running under test
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case <-done:
				return
			case <-as.MetricChans.DatabaseRead:
			case <-as.MetricChans.DatabaseWrite:
			case <-as.MetricChans.QrEncode:
			}
		}
	}()

	muxer := http.NewServeMux()
	route.Public(muxer, as)
	route.Auth(muxer, as)
	route.Admin(muxer, as)
	route.FieldAPI(muxer, as)
	return muxer, as
}

func postForm(muxer *http.ServeMux, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, muxer *http.ServeMux, as *utils.AppState) *http.Cookie {
	t.Helper()
	rec := postForm(muxer, "/login", url.Values{
		"username": {as.Config.GetAdminUsername()},
		"password": {as.Config.GetAdminPassword()},
	}, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == route.SessionSecretCookieName {
			return cookie
		}
	}
	t.Fatal("login: no session cookie set")
	return nil
}

func TestLoginBadCredentials(t *testing.T) {
	muxer, _ := newTestMux(t)

	rec := postForm(muxer, "/login", url.Values{
		"username": {"admin"},
		"password": {"wrong"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("login page should re-render with an error message")
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == route.SessionSecretCookieName {
			t.Error("no session cookie should be set on a failed login")
		}
	}
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	muxer, _ := newTestMux(t)

	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/admin"},
		{http.MethodPost, "/admin"},
		{http.MethodPost, "/update_bus_field"},
		{http.MethodPost, "/update_run_field"},
	} {
		req := httptest.NewRequest(c.method, c.path, nil)
		rec := httptest.NewRecorder()
		muxer.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Errorf("%s %s: status = %d, want %d", c.method, c.path, rec.Code, http.StatusSeeOther)
		}
		if got := rec.Header().Get("Location"); got != "/login" {
			t.Errorf("%s %s: redirect to %q, want /login", c.method, c.path, got)
		}
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("logout: status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	// the old secret must no longer open the door
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("admin after logout: status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAddBusRosterOrderEndToEnd(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	for _, busNumber := range []string{"9", "10"} {
		rec := postForm(muxer, "/admin", url.Values{
			"action":     {"add"},
			"bus_number": {busNumber},
			"driver":     {"A"},
			"status":     {"active"},
			"notes":      {""},
		}, cookie)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("add bus %s: status = %d", busNumber, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("roster: status = %d", rec.Code)
	}
	body := rec.Body.String()
	nine := strings.Index(body, "<td>9</td>")
	ten := strings.Index(body, "<td>10</td>")
	if nine == -1 || ten == -1 {
		t.Fatal("roster should list both buses")
	}
	if nine > ten {
		t.Error("bus 9 should appear before bus 10")
	}
}

func TestAddRunScheduleEndToEnd(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	rec := postForm(muxer, "/admin", url.Values{
		"action":      {"add_run"},
		"run_date":    {"2024-03-01"},
		"run_time":    {"14:00"},
		"group_name":  {"G"},
		"destination": {"City Hall"},
		"driver":      {"D"},
		"bus_number":  {"9"},
	}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("add run: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec2 := httptest.NewRecorder()
	muxer.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("schedule: status = %d", rec2.Code)
	}
	body := rec2.Body.String()
	for _, want := range []string{"03/01/2024", "Friday", "2:00 PM", "City Hall"} {
		if !strings.Contains(body, want) {
			t.Errorf("schedule should contain %q", want)
		}
	}
}

func TestDeleteBusViaAdminForm(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	busModel := model.Bus{BusNumber: "9", Driver: "A", Status: "active"}
	if err := busModel.Insert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}

	rec := postForm(muxer, "/admin", url.Values{
		"action": {"delete"},
		"bus_id": {"1"},
	}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete: status = %d", rec.Code)
	}

	buses, err := model.ListBuses(context.Background(), as.BunDB)
	if err != nil {
		t.Fatal(err)
	}
	if len(buses) != 0 {
		t.Errorf("got %d buses, want 0", len(buses))
	}
}

func postJSON(muxer *http.ServeMux, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	return rec
}

func TestUpdateBusFieldEndpoint(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	busModel := model.Bus{BusNumber: "9", Driver: "A", Status: "active"}
	if err := busModel.Insert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}

	type resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	rec := postJSON(muxer, "/update_bus_field", map[string]any{
		"bus_id": busModel.ID, "field": "driver", "value": "B",
	}, cookie)
	var ok resp
	if err := json.NewDecoder(rec.Body).Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if !ok.Success {
		t.Fatalf("update driver: %+v", ok)
	}

	rec = postJSON(muxer, "/update_bus_field", map[string]any{
		"bus_id": busModel.ID, "field": "bus_number", "value": "10",
	}, cookie)
	var rejected resp
	if err := json.NewDecoder(rec.Body).Decode(&rejected); err != nil {
		t.Fatal(err)
	}
	if rejected.Success || rejected.Error == "" {
		t.Fatalf("bus_number must be rejected: %+v", rejected)
	}

	buses, err := model.ListBuses(context.Background(), as.BunDB)
	if err != nil {
		t.Fatal(err)
	}
	if buses[0].Driver != "B" || buses[0].BusNumber != "9" {
		t.Errorf("row state after edits: %+v", buses[0])
	}
}

func TestUpdateRunFieldEndpointFormatChecks(t *testing.T) {
	muxer, as := newTestMux(t)
	cookie := login(t, muxer, as)

	runModel := model.Run{
		RunDate: "2024-03-01", RunTime: "14:00",
		GroupName: "G", Destination: "City Hall", Driver: "D", BusNumber: "9",
	}
	if err := runModel.Insert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}

	type resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	cases := []struct {
		field, value, wantErr string
	}{
		{"run_date", "03/01/2024", "Invalid date format"},
		{"run_time", "230pm", "Invalid time format"},
		{"secret_column", "x", "Invalid field"},
	}
	for _, c := range cases {
		rec := postJSON(muxer, "/update_run_field", map[string]any{
			"run_id": runModel.ID, "field": c.field, "value": c.value,
		}, cookie)
		var got resp
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Success || got.Error != c.wantErr {
			t.Errorf("field %q: got %+v, want error %q", c.field, got, c.wantErr)
		}
	}

	rec := postJSON(muxer, "/update_run_field", map[string]any{
		"run_id": runModel.ID, "field": "return_time", "value": "16:30",
	}, cookie)
	var got resp
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Success {
		t.Fatalf("valid return_time rejected: %+v", got)
	}

	stored, err := model.GetRun(context.Background(), as.BunDB, runModel.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.RunDate != "2024-03-01" || stored.RunTime != "14:00" || stored.ReturnTime != "16:30" {
		t.Errorf("row state after edits: %+v", stored)
	}
}

func TestRunQr(t *testing.T) {
	muxer, as := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/run_qr/999", nil)
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run: status = %d, want 404", rec.Code)
	}

	runModel := model.Run{
		RunDate: "2024-03-01", RunTime: "14:00",
		GroupName: "G", Destination: "City Hall", Driver: "D", BusNumber: "9",
	}
	if err := runModel.Insert(context.Background(), as.BunDB); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodGet, "/run_qr/1", nil)
	rec = httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("existing run: status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body should be a PNG image")
	}
}

func TestExpiredSessionClearsCookie(t *testing.T) {
	muxer, as := newTestMux(t)

	secret := uuid.NewString()
	if _, err := as.BunDB.NewInsert().Model(&model.Session{
		Secret:           secret,
		CreatedAtUnixUTC: time.Now().UTC().Add(-10 * 365 * 24 * time.Hour).Unix(),
		IpAddress:        "192.0.2.1",
	}).Exec(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: route.SessionSecretCookieName, Value: secret})
	rec := httptest.NewRecorder()
	muxer.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expired session: status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == route.SessionSecretCookieName && cookie.Value == "" && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("stale session cookie should be cleared alongside the redirect")
	}

	exists, err := as.BunDB.NewSelect().
		Model((*model.Session)(nil)).
		Where("secret = ?", secret).
		Exists(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("expired session row should be deleted")
	}
}

func TestAdminUnknownActionSkipsWriteMetric(t *testing.T) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	bundb := bun.NewDB(db, sqlitedialect.New())
	if err := model.Migrate(context.Background(), bundb); err != nil {
		t.Fatal(err)
	}

	as := &utils.AppState{
		Config: utils.NewConfig(),
		RawDB:  db,
		BunDB:  bundb,
		// buffered so sends can be counted without a consumer running
		MetricChans: &utils.Metric{
			DatabaseRead:  make(chan float64, 8),
			DatabaseWrite: make(chan float64, 8),
			QrEncode:      make(chan float64, 8),
		},
		AppCloseSignalChan: make(chan os.Signal, 1),
	}
	muxer := http.NewServeMux()
	route.Admin(muxer, as)

	secret := uuid.NewString()
	if _, err := as.BunDB.NewInsert().Model(&model.Session{
		Secret:           secret,
		CreatedAtUnixUTC: time.Now().UTC().Unix(),
		IpAddress:        "192.0.2.1",
	}).Exec(context.Background()); err != nil {
		t.Fatal(err)
	}
	cookie := &http.Cookie{Name: route.SessionSecretCookieName, Value: secret}

	rec := postForm(muxer, "/admin", url.Values{"action": {"bogus"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unknown action: status = %d", rec.Code)
	}
	if got := len(as.MetricChans.DatabaseWrite); got != 0 {
		t.Errorf("unknown action reported %d write latencies, want 0", got)
	}

	rec = postForm(muxer, "/admin", url.Values{"action": {"delete"}, "bus_id": {"1"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete action: status = %d", rec.Code)
	}
	if got := len(as.MetricChans.DatabaseWrite); got != 1 {
		t.Errorf("dispatched action reported %d write latencies, want 1", got)
	}
}

func TestMapSearchURL(t *testing.T) {
	got := route.MapSearchURL("City Hall & Plaza")
	want := "https://www.google.com/maps/search/?api=1&query=City+Hall+%26+Plaza"
	if got != want {
		t.Errorf("MapSearchURL = %q, want %q", got, want)
	}
}
