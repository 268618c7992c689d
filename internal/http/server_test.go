package http

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"energycalc/internal/cache"
	"energycalc/internal/catalog"
	"energycalc/internal/log"
	"energycalc/internal/services"
	"energycalc/internal/store/memory"
)

func newTestServer(t *testing.T, rateLimit int) *Server {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	st := memory.New(100, time.Hour)
	svc := services.NewSessionService(st, catalog.Default(), nil, logger)
	s := NewServer(Config{
		Addr:               ":0",
		RateLimitPerMinute: rateLimit,
		SessionTTL:         time.Hour,
		Caches:             map[string]cache.Cleaner{"sessions": st.Cache()},
	}, svc, logger)
	t.Cleanup(func() { s.cacheManager.Stop() })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func loadPage(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d: %s", rec.Code, rec.Body.String())
	}
	return sessionCookie(t, rec)
}

func postForm(s *Server, path string, c *http.Cookie, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	if c != nil {
		req.AddCookie(c)
	}
	return do(s, req)
}

func entry(category, power, hours, price string) url.Values {
	return url.Values{
		"category":     {category},
		"power":        {power},
		"hours":        {hours},
		"pricePerUnit": {price},
	}
}

func getCharts(t *testing.T, s *Server, c *http.Cookie) chartsResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/charts", nil)
	req.AddCookie(c)
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/charts = %d", rec.Code)
	}
	var out chartsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode charts: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestIndexRendersPage(t *testing.T) {
	s := newTestServer(t, 60)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Energy Distribution",
		"Cost Comparison",
		"Add Device",
		`<option value="light" selected>Light</option>`,
		`<option value="ac">AC</option>`,
		`id="chart-data"`,
		"No devices yet.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	c := sessionCookie(t, rec)
	if !c.HttpOnly || c.Path != "/" {
		t.Errorf("unexpected cookie: %+v", c)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers not applied")
	}
}

func TestSubmitEntryScenarioC(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	rec := postForm(s, "/entries", c, entry("light", "100", "5", "0.1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /entries = %d: %s", rec.Code, rec.Body.String())
	}
	if trig := rec.Header().Get("HX-Trigger"); !strings.Contains(trig, EventEntryAdded) || !strings.Contains(trig, EventFormReset) {
		t.Errorf("HX-Trigger = %q", trig)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="entry-form"`) || !strings.Contains(body, `hx-swap-oob="true"`) {
		t.Errorf("response lacks form or out-of-band charts: %s", body)
	}
	if !strings.Contains(body, "<td>Light</td><td>0.500</td><td>0.05</td>") {
		t.Errorf("totals row missing: %s", body)
	}

	postForm(s, "/entries", c, entry("fan", "60", "8", "0.1"))

	got := getCharts(t, s, c)
	if !reflect.DeepEqual(got.Pie.Labels, []string{"light", "fan"}) {
		t.Fatalf("labels = %v", got.Pie.Labels)
	}
	pie, bar := got.Pie.Datasets[0], got.Bar.Datasets[0]
	if pie.Label != "Energy Consumption (kWh)" || bar.Label != "Daily Cost" {
		t.Errorf("dataset labels = %q, %q", pie.Label, bar.Label)
	}
	wantEnergy := []float64{0.5, 0.48}
	wantCost := []float64{0.05, 0.048}
	for i := range wantEnergy {
		if math.Abs(pie.Data[i]-wantEnergy[i]) > 1e-9 || math.Abs(bar.Data[i]-wantCost[i]) > 1e-9 {
			t.Errorf("row %d: energy %v cost %v", i, pie.Data[i], bar.Data[i])
		}
	}
	if !reflect.DeepEqual(pie.BackgroundColor, []string{"#FF6384", "#36A2EB"}) {
		t.Errorf("pie colors = %v", pie.BackgroundColor)
	}
	if !reflect.DeepEqual(bar.BackgroundColor, []string{"#36A2EB", "#4BC0C0"}) {
		t.Errorf("bar colors = %v", bar.BackgroundColor)
	}
	if got.Entries != 2 || math.Abs(got.EnergyKWh-0.98) > 1e-9 {
		t.Errorf("summary = %d entries, %v kWh", got.Entries, got.EnergyKWh)
	}
}

func TestEmptyChartsEncodeEmptyArrays(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/charts", nil)
	req.AddCookie(c)
	rec := do(s, req)
	if strings.Contains(rec.Body.String(), "null") {
		t.Fatalf("empty charts contain null: %s", rec.Body.String())
	}
}

func TestReloadStartsFreshSession(t *testing.T) {
	s := newTestServer(t, 60)
	old := loadPage(t, s)
	postForm(s, "/entries", old, entry("tv", "120", "4", "0.2"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(old)
	rec := do(s, req)
	fresh := sessionCookie(t, rec)
	if fresh.Value == old.Value {
		t.Fatalf("reload reused the session ID")
	}
	if !strings.Contains(rec.Body.String(), "No devices yet.") {
		t.Errorf("reloaded page shows previous entries")
	}
	if got := getCharts(t, s, old); got.Entries != 0 {
		t.Errorf("old session still has %d entries", got.Entries)
	}
}

func TestDraftThenSubmit(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	rec := postForm(s, "/draft", c, url.Values{"field": {"category"}, "value": {"ac"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /draft = %d", rec.Code)
	}
	postForm(s, "/draft", c, url.Values{"power": {"1500"}})

	rec = postForm(s, "/entries", c, url.Values{"hours": {"2"}, "pricePerUnit": {"0.2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /entries = %d", rec.Code)
	}
	got := getCharts(t, s, c)
	if !reflect.DeepEqual(got.Pie.Labels, []string{"ac"}) || math.Abs(got.Pie.Datasets[0].Data[0]-3) > 1e-9 {
		t.Fatalf("charts = %+v", got.Pie)
	}
	// The form in the response is reset to the default draft.
	if !strings.Contains(rec.Body.String(), `<option value="light" selected>Light</option>`) {
		t.Errorf("form not reset after submit")
	}
}

func TestSubmitUnknownCategoryAndBadNumbers(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	rec := postForm(s, "/entries", c, entry("toaster", "abc", "", "0,5"))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /entries = %d", rec.Code)
	}
	got := getCharts(t, s, c)
	if !reflect.DeepEqual(got.Pie.Labels, []string{"light"}) || got.Pie.Datasets[0].Data[0] != 0 {
		t.Fatalf("charts = %+v", got.Pie)
	}
}

func TestSubmitWithoutCookieStartsSession(t *testing.T) {
	s := newTestServer(t, 60)
	rec := postForm(s, "/entries", nil, entry("fan", "60", "8", "0.1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /entries = %d", rec.Code)
	}
	c := sessionCookie(t, rec)
	if got := getCharts(t, s, c); got.Entries != 1 {
		t.Fatalf("entries = %d, want 1", got.Entries)
	}
}

func TestChartsPartial(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)
	postForm(s, "/entries", c, entry("fan", "60", "8", "0.1"))

	req := httptest.NewRequest(http.MethodGet, "/ui/charts", nil)
	req.AddCookie(c)
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ui/charts = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "hx-swap-oob") {
		t.Errorf("plain partial should not be out-of-band")
	}
	if !strings.Contains(body, "<td>Fan</td><td>0.480</td><td>0.05</td>") {
		t.Errorf("partial lacks totals: %s", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, 60)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/entries", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /entries = %d, want 405", rec.Code)
	}
}

func TestRateLimitOnSubmit(t *testing.T) {
	s := newTestServer(t, 2)
	c := loadPage(t, s)

	for i := 0; i < 2; i++ {
		if rec := postForm(s, "/entries", c, entry("light", "1", "1", "1")); rec.Code != http.StatusOK {
			t.Fatalf("POST %d = %d", i+1, rec.Code)
		}
	}
	rec := postForm(s, "/entries", c, entry("light", "1", "1", "1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third POST = %d, want 429", rec.Code)
	}
	if got := getCharts(t, s, c); got.Entries != 2 {
		t.Fatalf("limited request was stored: %d entries", got.Entries)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)
	postForm(s, "/entries", c, entry("light", "100", "5", "0.1"))

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec := do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ready"`) {
		t.Errorf("readyz = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"entries_submitted_total 1", "sessions_started_total 1", "http_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, 60)
	for _, path := range []string{"/static/app.css", "/static/charts.js"} {
		rec := do(s, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
		if rec.Header().Get("Cache-Control") == "" {
			t.Errorf("GET %s has no Cache-Control", path)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  12\x00.5\n "); got != "12.5" {
		t.Fatalf("sanitizeInput = %q", got)
	}
}

func TestActivityRefreshesSessionCookie(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	for _, tc := range []struct {
		path   string
		values url.Values
		status int
	}{
		{"/draft", url.Values{"power": {"60"}}, http.StatusNoContent},
		{"/entries", entry("fan", "60", "8", "0.1"), http.StatusOK},
	} {
		rec := postForm(s, tc.path, c, tc.values)
		if rec.Code != tc.status {
			t.Fatalf("POST %s = %d", tc.path, rec.Code)
		}
		refreshed := sessionCookie(t, rec)
		if refreshed.Value != c.Value {
			t.Fatalf("POST %s switched session %q -> %q", tc.path, c.Value, refreshed.Value)
		}
		if refreshed.MaxAge != int(time.Hour.Seconds()) {
			t.Errorf("POST %s cookie MaxAge = %d", tc.path, refreshed.MaxAge)
		}
	}
}

func TestDraftAutosaveDoesNotStarveSubmits(t *testing.T) {
	s := newTestServer(t, 60)
	c := loadPage(t, s)

	const devices = 20
	for i := 1; i <= devices; i++ {
		for _, field := range []url.Values{
			{"field": {"category"}, "value": {"tv"}},
			{"field": {"power"}, "value": {"120"}},
			{"field": {"hours"}, "value": {"4"}},
			{"field": {"pricePerUnit"}, "value": {"0.2"}},
		} {
			if rec := postForm(s, "/draft", c, field); rec.Code != http.StatusNoContent {
				t.Fatalf("device %d draft edit = %d", i, rec.Code)
			}
		}
		if rec := postForm(s, "/entries", c, entry("tv", "120", "4", "0.2")); rec.Code != http.StatusOK {
			t.Fatalf("device %d submit = %d", i, rec.Code)
		}
	}
	if got := getCharts(t, s, c); got.Entries != devices {
		t.Fatalf("entries = %d, want %d", got.Entries, devices)
	}
}

func TestResetFormShowsEmptyInputs(t *testing.T) {
	s := newTestServer(t, 60)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	c := sessionCookie(t, rec)
	submit := postForm(s, "/entries", c, entry("fan", "60", "8", "0.1"))

	for name, body := range map[string]string{"page": rec.Body.String(), "submit": submit.Body.String()} {
		if strings.Contains(body, `value="0"`) {
			t.Errorf("%s form renders zero values", name)
		}
		if n := strings.Count(body, `value=""`); n != 3 {
			t.Errorf("%s form has %d empty inputs, want 3", name, n)
		}
	}
}

func TestNumTemplateFunc(t *testing.T) {
	s := newTestServer(t, 60)
	num := s.templateFuncs()["num"].(func(float64) string)
	for in, want := range map[float64]string{0: "", 60: "60", 0.25: "0.25", -5: "-5"} {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
