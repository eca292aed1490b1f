package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"primedetail.kg/detail-web/internal/carousel"
	mw "primedetail.kg/detail-web/internal/middleware"
	"primedetail.kg/detail-web/internal/testutil"
)

type visitor struct {
	t    *testing.T
	base string
	http *http.Client
	ip   string
}

func newVisitor(t *testing.T, ts *httptest.Server) *visitor {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &visitor{
		t:    t,
		base: ts.URL,
		http: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (v *visitor) do(req *http.Request) (*http.Response, []byte) {
	v.t.Helper()
	if v.ip != "" {
		req.Header.Set("X-Forwarded-For", v.ip)
	}
	resp, err := v.http.Do(req)
	require.NoError(v.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(v.t, err)
	return resp, body
}

func (v *visitor) get(path string, headers ...string) (*http.Response, []byte) {
	v.t.Helper()
	req, err := http.NewRequest(http.MethodGet, v.base+path, nil)
	require.NoError(v.t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return v.do(req)
}

func (v *visitor) csrf() string {
	v.t.Helper()
	u, err := url.Parse(v.base)
	require.NoError(v.t, err)
	for _, c := range v.http.Jar.Cookies(u) {
		if c.Name == mw.CSRFCookieName {
			return c.Value
		}
	}
	v.t.Fatal("no csrf cookie; visit a page first")
	return ""
}

// postForm posts as htmx unless plain is set, in which case the token travels as a form field.
func (v *visitor) postForm(path string, form url.Values, plain bool) (*http.Response, []byte) {
	v.t.Helper()
	if plain {
		form.Set(mw.CSRFFormField, v.csrf())
	}
	req, err := http.NewRequest(http.MethodPost, v.base+path, strings.NewReader(form.Encode()))
	require.NoError(v.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if !plain {
		req.Header.Set("HX-Request", "true")
		req.Header.Set(mw.CSRFHeader, v.csrf())
	}
	return v.do(req)
}

func (v *visitor) postJSON(path, body string) (*http.Response, map[string]any) {
	v.t.Helper()
	req, err := http.NewRequest(http.MethodPost, v.base+path, strings.NewReader(body))
	require.NoError(v.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(mw.CSRFHeader, v.csrf())
	resp, raw := v.do(req)
	var payload map[string]any
	require.NoError(v.t, json.Unmarshal(raw, &payload), string(raw))
	return resp, payload
}

func (v *visitor) home() *goquery.Document {
	v.t.Helper()
	resp, body := v.get("/")
	require.Equal(v.t, http.StatusOK, resp.StatusCode)
	return testutil.ParseHTML(v.t, body)
}

func TestHealthz(t *testing.T) {
	ts := testutil.NewServer(t)
	resp, body := newVisitor(t, ts).get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestHomeRendersRussianVariantByDefault(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)
	resp, body := v.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ru", resp.Header.Get("Content-Language"))
	require.Contains(t, resp.Header.Values("Vary"), "Accept-Language")

	doc := testutil.ParseHTML(t, body)
	lang, _ := doc.Find("html").Attr("lang")
	require.Equal(t, "ru", lang)
	require.Contains(t, doc.Find("title").Text(), "Prime Detail")
	require.Equal(t, "Отправить заявку", strings.TrimSpace(doc.Find("#booking-form button[type=submit]").Text()))
	require.Equal(t, 1, doc.Find(`link[rel="alternate"][hreflang="en"]`).Length())
	require.Equal(t, 1, doc.Find(`link[rel="alternate"][hreflang="x-default"]`).Length())

	token, ok := doc.Find(`meta[name="csrf-token"]`).Attr("content")
	require.True(t, ok)
	require.Equal(t, v.csrf(), token)

	// nav points at in-page anchors on the home page
	href, _ := doc.Find(".main-nav a").First().Attr("href")
	require.Equal(t, "#services", href)

	require.Contains(t, doc.Find("#carousel-hero h1").Text(), "Премиальный детейлинг")
	require.Equal(t, 3, doc.Find("#carousel-hero .carousel-dots button").Length())
	require.Equal(t, 4, doc.Find("#portfolio-panel .portfolio-card").Length())
	require.Equal(t, 1, doc.Find(".package-card.best").Length())
	require.Contains(t, doc.Find(".package-card .price").First().Text(), "сом")
}

func TestHomeJSONLD(t *testing.T) {
	ts := testutil.NewServer(t)
	doc := newVisitor(t, ts).home()

	scripts := doc.Find(`script[type="application/ld+json"]`)
	require.Equal(t, 3, scripts.Length())
	types := []string{}
	scripts.Each(func(_ int, s *goquery.Selection) {
		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(s.Text()), &v), s.Text())
		types = append(types, v["@type"].(string))
	})
	require.Equal(t, []string{"AutoRepair", "WebSite", "FAQPage"}, types)
}

func TestLangQuerySwitchesVariantAndSticks(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)

	resp, body := v.get("/?lang=en")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := testutil.ParseHTML(t, body)
	require.Contains(t, doc.Find("title").Text(), "SHINE PORT")
	require.Equal(t, "Send Request", strings.TrimSpace(doc.Find("#booking-form button[type=submit]").Text()))
	require.Contains(t, doc.Find(".package-card .price").First().Text(), "$")

	// the choice is remembered by the session
	doc = v.home()
	lang, _ := doc.Find("html").Attr("lang")
	require.Equal(t, "en", lang)
}

func TestAcceptLanguageSelectsEnglish(t *testing.T) {
	ts := testutil.NewServer(t)
	resp, body := newVisitor(t, ts).get("/", "Accept-Language", "en-US,en;q=0.9")
	require.Equal(t, "en", resp.Header.Get("Content-Language"))
	require.Contains(t, string(body), "SHINE PORT")
}

func TestPolicyPage(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)

	resp, body := v.get("/policy", "Referer", ts.URL+"/?category=interior")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, "Политика конфиденциальности", doc.Find("h1").Text())
	back, _ := doc.Find("a.back-link").Attr("href")
	require.Equal(t, "/?category=interior", back)
	require.Positive(t, doc.Find("article.prose h2").Length())
	require.Equal(t, 1, doc.Find(`script[type="application/ld+json"]`).Length())

	// other hosts never become the back target
	_, body = v.get("/policy", "Referer", "https://evil.example/phish")
	back, _ = testutil.ParseHTML(t, body).Find("a.back-link").Attr("href")
	require.Equal(t, "/", back)

	_, body = v.get("/policy?lang=en")
	require.Equal(t, "Privacy Policy", testutil.ParseHTML(t, body).Find("h1").Text())
}

func TestNotFound(t *testing.T) {
	ts := testutil.NewServer(t)
	resp, body := newVisitor(t, ts).get("/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, string(body), "Страница не найдена")
}

func TestServicesFragmentFiltersByCategory(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)

	resp, body := v.get("/fragments/services?category=interior", "HX-Request", "true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find("#services-panel").Length())
	active := doc.Find(".tab.active").Text()
	require.Equal(t, "Салон", strings.TrimSpace(active))
	ids := []string{}
	doc.Find(".service-card").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-service")
		ids = append(ids, id)
	})
	require.Equal(t, []string{"interior-dryclean", "leather-care"}, ids)

	// unknown categories fall back to the first tab
	_, body = v.get("/fragments/services?category=bogus")
	require.Equal(t, "Кузов", strings.TrimSpace(testutil.ParseHTML(t, body).Find(".tab.active").Text()))
}

func TestPortfolioFragment(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)

	_, body := v.get("/fragments/portfolio?category=ceramic")
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".portfolio-card").Length())

	_, body = v.get("/fragments/portfolio?category=all")
	require.Equal(t, 4, testutil.ParseHTML(t, body).Find(".portfolio-card").Length())
}

func TestHomePreselectsServiceFromQuery(t *testing.T) {
	ts := testutil.NewServer(t)
	_, body := newVisitor(t, ts).get("/?service=ceramic-9h")
	doc := testutil.ParseHTML(t, body)
	selected, _ := doc.Find("#booking-service option[selected]").Attr("value")
	require.Equal(t, "Керамическое покрытие 9H", selected)
}

func TestBookingRejectsShortFields(t *testing.T) {
	d := &testutil.Dispatcher{}
	ts := testutil.NewServer(t, testutil.WithDispatcher(d))
	v := newVisitor(t, ts)
	v.home()

	resp, body := v.postForm("/booking", url.Values{"name": {"A"}, "phone": {"123"}, "carModel": {"BMW X5"}}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("HX-Trigger"))

	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 2, doc.Find(".field-error").Length())
	require.Contains(t, doc.Find(".field.invalid").First().Text(), "минимум 2 символа")
	name, _ := doc.Find("#booking-name").Attr("value")
	require.Equal(t, "A", name)
	car, _ := doc.Find("#booking-car").Attr("value")
	require.Equal(t, "BMW X5", car)
	require.Empty(t, d.Leads())
}

func TestBookingSuccessThenReset(t *testing.T) {
	d := &testutil.Dispatcher{}
	ts := testutil.NewServer(t, testutil.WithDispatcher(d))
	v := newVisitor(t, ts)
	v.home()

	form := url.Values{
		"name":          {"  Азамат "},
		"phone":         {"0555 123 456"},
		"service":       {"Химчистка салона"},
		"preferredTime": {"10:00"},
	}
	resp, body := v.postForm("/booking", form, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "booking:submitted", resp.Header.Get("HX-Trigger"))
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".booking-success").Length())
	require.Equal(t, "LEAD0001", doc.Find(".lead-id code").Text())

	leads := d.Leads()
	require.Len(t, leads, 1)
	require.Equal(t, "Азамат", leads[0].Request.Name)
	require.Equal(t, "+996555123456", leads[0].Request.Phone)
	require.Equal(t, "primedetail:web", leads[0].Source)
	require.Equal(t, "Имя", leads[0].Labels.Name)

	// a second submit of the same form is ignored
	resp, body = v.postForm("/booking", form, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, testutil.ParseHTML(t, body).Find(".booking-success").Length())
	require.Len(t, d.Leads(), 1)

	resp, body = v.postForm("/booking/reset", url.Values{}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find("#booking-form").Length())
	name, _ := doc.Find("#booking-name").Attr("value")
	require.Empty(t, name)
}

func TestBookingFailureKeepsForm(t *testing.T) {
	d := &testutil.Dispatcher{Fail: true}
	ts := testutil.NewServer(t, testutil.WithDispatcher(d))
	v := newVisitor(t, ts)
	v.home()

	resp, body := v.postForm("/booking", url.Values{"name": {"Айгуль"}, "phone": {"+996 700 000 000"}}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "booking:failed", resp.Header.Get("HX-Trigger"))
	doc := testutil.ParseHTML(t, body)
	require.Equal(t, 1, doc.Find(".form-alert").Length())
	name, _ := doc.Find("#booking-name").Attr("value")
	require.Equal(t, "Айгуль", name)

	// a retry after recovery goes through
	d.SetFail(false)
	resp, _ = v.postForm("/booking", url.Values{"name": {"Айгуль"}, "phone": {"+996 700 000 000"}}, false)
	require.Equal(t, "booking:submitted", resp.Header.Get("HX-Trigger"))
	require.Len(t, d.Leads(), 2)
}

func TestPlainBookingPostRedirectsToForm(t *testing.T) {
	d := &testutil.Dispatcher{}
	ts := testutil.NewServer(t, testutil.WithDispatcher(d))
	v := newVisitor(t, ts)
	v.home()

	resp, _ := v.postForm("/booking", url.Values{"name": {"Бекзат"}, "phone": {"0555123456"}}, true)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/#booking", resp.Header.Get("Location"))

	doc := v.home()
	require.Equal(t, 1, doc.Find(".booking-success").Length())
}

func TestBookingRequiresCSRF(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)
	v.home()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/booking", strings.NewReader("name=Test&phone=0555123456"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.Header.Set(mw.CSRFHeader, "forged")
	resp, body := v.do(req)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, string(body), "csrf_invalid")
}

func TestLeadsAPI(t *testing.T) {
	d := &testutil.Dispatcher{}
	ts := testutil.NewServer(t, testutil.WithDispatcher(d))
	v := newVisitor(t, ts)
	v.home()

	resp, payload := v.postJSON("/api/leads", `{"name":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_json", payload["error"])

	resp, payload = v.postJSON("/api/leads", `{"name":"A","phone":"12"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_failed", payload["error"])
	require.Equal(t, map[string]any{"name": "too_short", "phone": "too_short"}, payload["fields"])

	resp, payload = v.postJSON("/api/leads", `{"name":"Michael","phone":"+1 (555) 123-4567","carModel":"BMW M5"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "accepted", payload["status"])
	require.Equal(t, "LEAD0001", payload["leadId"])
	require.EqualValues(t, 2, payload["delivered"])
	require.Equal(t, "primedetail:api", d.Leads()[0].Source)

	d.SetFail(true)
	resp, payload = v.postJSON("/api/leads", `{"name":"Michael","phone":"+1 (555) 123-4567"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "dispatch_failed", payload["error"])
	require.Equal(t, []any{"relay"}, payload["failedTargets"])
	require.Equal(t, "LEAD0002", payload["leadId"])
}

func TestLeadsAPIAllowsBearerClientsWithoutCSRF(t *testing.T) {
	ts := testutil.NewServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/leads", strings.NewReader(`{"name":"Sarah","phone":"5551234567"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer integration")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestBookingRateLimitPerClient(t *testing.T) {
	ts := testutil.NewServer(t,
		testutil.WithEnv("DETAIL_WEB_BOOKING_PER_MINUTE", "1"),
		testutil.WithEnv("DETAIL_WEB_BOOKING_BURST", "1"))
	v := newVisitor(t, ts)
	v.ip = "203.0.113.7"
	v.home()

	resp, _ := v.postJSON("/api/leads", `{"name":"Sarah","phone":"5551234567"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, payload := v.postJSON("/api/leads", `{"name":"Sarah","phone":"5551234567"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "rate_limited", payload["error"])
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// another client still has its own bucket
	other := newVisitor(t, ts)
	other.ip = "198.51.100.9"
	other.home()
	resp, _ = other.postJSON("/api/leads", `{"name":"David","phone":"5551234567"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

type manualTicker struct{ ch chan time.Time }

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop() {}

type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (f *tickers) new(time.Duration) carousel.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	f.all = append(f.all, t)
	return t
}

func (f *tickers) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

func (f *tickers) get(i int) *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all[i]
}

func TestCookielessVisitsStartNoCarouselLoops(t *testing.T) {
	f := &tickers{}
	ts := testutil.NewServer(t, testutil.WithTicker(f.new))
	client := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < 20; i++ {
		for _, path := range []string{"/", "/carousel/hero", "/carousel/reviews"} {
			resp, err := client.Get(ts.URL + path)
			require.NoError(t, err)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	}
	require.Zero(t, f.len())

	v := newVisitor(t, ts)
	doc := v.home()
	idx, _ := doc.Find("#carousel-hero").Attr("data-index")
	require.Equal(t, "0", idx)
	require.Zero(t, f.len())
	v.get("/carousel/hero", "HX-Request", "true")
	v.get("/carousel/hero", "HX-Request", "true")
	require.Equal(t, 1, f.len())
}

func carouselIndex(t *testing.T, body []byte, name string) string {
	t.Helper()
	idx, ok := testutil.ParseHTML(t, body).Find("#carousel-" + name).Attr("data-index")
	require.True(t, ok)
	return idx
}

func TestCarouselAutoplayAndNavigation(t *testing.T) {
	f := &tickers{}
	ts := testutil.NewServer(t, testutil.WithTicker(f.new))
	v := newVisitor(t, ts)
	doc := v.home()

	hero := doc.Find("#carousel-hero")
	trigger, ok := hero.Attr("hx-trigger")
	require.True(t, ok)
	require.Equal(t, "every 5000ms", trigger)

	// the page itself starts no loops; the first poll creates the hero controller
	require.Zero(t, f.len())
	_, body := v.get("/carousel/hero", "HX-Request", "true")
	require.Equal(t, "0", carouselIndex(t, body, "hero"))
	require.Equal(t, 1, f.len())
	f.get(0).ch <- time.Now()
	require.Eventually(t, func() bool {
		_, body := v.get("/carousel/hero", "HX-Request", "true")
		return carouselIndex(t, body, "hero") == "1"
	}, time.Second, 5*time.Millisecond)

	resp, body := v.postForm("/carousel/hero/prev", url.Values{}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = testutil.ParseHTML(t, body)
	require.Equal(t, "0", carouselIndex(t, body, "hero"))
	direction, _ := doc.Find("#carousel-hero").Attr("data-direction")
	require.Equal(t, "backward", direction)
	_, polling := doc.Find("#carousel-hero").Attr("hx-trigger")
	require.False(t, polling)

	_, body = v.postForm("/carousel/hero/next", url.Values{}, false)
	require.Equal(t, "1", carouselIndex(t, body, "hero"))

	_, body = v.postForm("/carousel/hero/goto/2", url.Values{}, false)
	require.Equal(t, "2", carouselIndex(t, body, "hero"))

	_, body = v.postForm("/carousel/hero/autoplay", url.Values{}, false)
	pressed, _ := testutil.ParseHTML(t, body).Find(".carousel-autoplay").Attr("aria-pressed")
	require.Equal(t, "true", pressed)

	_, body = v.postForm("/carousel/reviews/next", url.Values{}, false)
	require.Equal(t, "1", carouselIndex(t, body, "reviews"))
}

func TestCarouselErrors(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)
	v.home()

	resp, _ := v.postForm("/carousel/hero/goto/9", url.Values{}, false)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = v.postForm("/carousel/hero/goto/x", url.Values{}, false)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = v.get("/carousel/gallery")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssetsServeWithETag(t *testing.T) {
	ts := testutil.NewServer(t)
	v := newVisitor(t, ts)
	resp, _ := v.get("/assets/site.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	resp, _ = v.get("/assets/site.css", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, resp.StatusCode)
}
