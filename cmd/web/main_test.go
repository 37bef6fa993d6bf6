package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"sigmarservicos.com.br/sigmar-web/internal/backend"
	"sigmarservicos.com.br/sigmar-web/internal/catalog"
	"sigmarservicos.com.br/sigmar-web/internal/contact"
	"sigmarservicos.com.br/sigmar-web/internal/deeplink"
	mw "sigmarservicos.com.br/sigmar-web/internal/middleware"
	"sigmarservicos.com.br/sigmar-web/internal/site"
)

type fakeBackend struct {
	contactStatus atomic.Int32
	healthStatus  atomic.Int32
	posts         atomic.Int32

	// holdContact parks contact posts after signalling started until release is closed.
	holdContact atomic.Bool
	started     chan struct{}
	release     chan struct{}
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{started: make(chan struct{}, 1), release: make(chan struct{})}
	fb.contactStatus.Store(http.StatusCreated)
	fb.healthStatus.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case backend.ServicesPath:
			_, _ = io.WriteString(w, `[
				{"id":"1","icon":"❄️","title":"Ar-condicionado","description":"Instalação e manutenção"},
				{"id":"2","icon":"🔌","title":"Elétrica","description":"Serviços elétricos"}
			]`)
		case backend.TestimonialsPath:
			_, _ = io.WriteString(w, `[
				{"id":"a","name":"Ana","service":"Ar-condicionado","comment":"Ótimo","rating":5},
				{"_id":"665f","name":"Bruno","service":"Elétrica","comment":"Bom","rating":3},
				{"name":"Carla","service":"Elétrica","comment":"Hmm","rating":-1}
			]`)
		case backend.ContactPath:
			fb.posts.Add(1)
			if fb.holdContact.Load() {
				fb.started <- struct{}{}
				<-fb.release
			}
			w.WriteHeader(int(fb.contactStatus.Load()))
			_, _ = io.WriteString(w, `{}`)
		case backend.HealthPath:
			code := int(fb.healthStatus.Load())
			w.WriteHeader(code)
			if code == http.StatusOK {
				_, _ = io.WriteString(w, `{"status":"healthy","message":"Mr. Sigmar Services API is running"}`)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

// newTestRouter builds the router like main() against a fake backend.
func newTestRouter(t *testing.T) (http.Handler, *fakeBackend) {
	t.Helper()
	_, h, fb := newTestApp(t)
	return h, fb
}

func newTestApp(t *testing.T) (*app, http.Handler, *fakeBackend) {
	t.Helper()
	devMode = true
	templatesDir = "../../templates"
	publicDir = "../../public"
	if _, err := parseTemplates(); err != nil {
		t.Fatalf("parseTemplates failed: %v", err)
	}
	content, err := site.LoadContent("../../content/site.yaml")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}

	fb, srv := newFakeBackend(t)
	client := backend.NewClient(srv.URL, backend.WithTimeout(2*time.Second))
	cat := catalog.New(client, zap.NewNop())
	cat.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for !(cat.Services().Loaded && cat.Testimonials().Loaded) {
		if time.Now().After(deadline) {
			t.Fatalf("catalog did not load")
		}
		time.Sleep(5 * time.Millisecond)
	}

	a := &app{
		content:  content,
		catalog:  cat,
		forms:    contact.NewRegistry(func() *contact.Controller { return contact.NewController(client) }, time.Hour, nil),
		health:   client,
		readyTTL: time.Second,
		clock:    time.Now,
	}
	h := newRouter(a, routerDeps{
		logger:   zap.NewNop(),
		sessions: mw.NewSessions("test-signing-key", false, nil),
		limiter:  mw.NewRateLimiter(mw.RateLimitConfig{PerMinute: 600, Burst: 100}),
	})
	return a, h, fb
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == mw.SessionCookieName {
			return c
		}
	}
	t.Fatalf("missing %s cookie; headers=%v", mw.SessionCookieName, rec.Result().Header["Set-Cookie"])
	return nil
}

func validForm() url.Values {
	return url.Values{
		"name":    {"Maria Silva"},
		"email":   {"maria@example.com"},
		"phone":   {"(67) 99999-0000"},
		"service": {"Ar-condicionado"},
		"message": {"Preciso de manutenção."},
	}
}

func postContact(h http.Handler, cookie *http.Cookie, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getWithCookie(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasAttr(key string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		_, ok := attr(n, key)
		return ok
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func inputValue(doc *html.Node, name string) string {
	for _, n := range findAll(doc, func(n *html.Node) bool {
		v, _ := attr(n, "name")
		return v == name
	}) {
		if n.Data == "textarea" {
			return textOf(n)
		}
		v, _ := attr(n, "value")
		return v
	}
	return ""
}

func TestHealthzOK(t *testing.T) {
	srv, _ := newTestRouter(t)
	rec := getWithCookie(srv, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "ok" {
		t.Fatalf("expected body 'ok', got %q", got)
	}
}

func TestReadyzReflectsBackendHealth(t *testing.T) {
	srv, fb := newTestRouter(t)
	rec := getWithCookie(srv, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rec.Code, rec.Body.String())
	}
	var body readiness
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if body.Message != "Mr. Sigmar Services API is running" {
		t.Fatalf("unexpected readiness message %q", body.Message)
	}

	fb.healthStatus.Store(http.StatusServiceUnavailable)
	rec = getWithCookie(srv, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when backend is down, got %d", rec.Code)
	}
}

func TestHomeRendersCatalogInOrder(t *testing.T) {
	srv, _ := newTestRouter(t)
	rec := getWithCookie(srv, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec.Body.String())

	services := findAll(doc, hasAttr("data-service-key"))
	if len(services) != 2 {
		t.Fatalf("expected 2 service cards, got %d", len(services))
	}
	if !strings.Contains(textOf(services[0]), "Ar-condicionado") || !strings.Contains(textOf(services[1]), "Elétrica") {
		t.Fatalf("service cards out of order: %q / %q", textOf(services[0]), textOf(services[1]))
	}

	cards := findAll(doc, hasAttr("data-testimonial-key"))
	if len(cards) != 3 {
		t.Fatalf("expected 3 testimonial cards, got %d", len(cards))
	}
	wantKeys := []string{"a", "665f", "2"}
	wantStars := []int{5, 3, 0}
	for i, card := range cards {
		key, _ := attr(card, "data-testimonial-key")
		if key != wantKeys[i] {
			t.Fatalf("card %d key = %q, want %q", i, key, wantKeys[i])
		}
		stars := findAll(card, func(n *html.Node) bool {
			v, _ := attr(n, "class")
			return v == "stars"
		})
		if len(stars) != 1 {
			t.Fatalf("card %d: expected one stars element", i)
		}
		if got := strings.Count(textOf(stars[0]), site.StarGlyph); got != wantStars[i] {
			t.Fatalf("card %d: %d stars, want %d", i, got, wantStars[i])
		}
	}

	links := findAll(doc, hasAttr("data-whatsapp-link"))
	if len(links) != 1 {
		t.Fatalf("expected floating whatsapp link")
	}
	if href, _ := attr(links[0], "href"); href != deeplink.Default() {
		t.Fatalf("whatsapp href = %q", href)
	}
}

func TestContactSubmitSuccessRedirectsAndResets(t *testing.T) {
	srv, fb := newTestRouter(t)
	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))

	rec := postContact(srv, cookie, validForm(), false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d; body=%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != contactAnchor {
		t.Fatalf("expected redirect to %s, got %q", contactAnchor, loc)
	}
	if fb.posts.Load() != 1 {
		t.Fatalf("expected one backend post, got %d", fb.posts.Load())
	}

	doc := parseHTML(t, getWithCookie(srv, "/", cookie).Body.String())
	msgs := findAll(doc, hasAttr("data-form-message"))
	if len(msgs) != 1 || !strings.Contains(textOf(msgs[0]), "sucesso") {
		t.Fatalf("expected success message, got %d nodes", len(msgs))
	}
	for _, name := range []string{"name", "email", "phone", "message"} {
		if v := inputValue(doc, name); v != "" {
			t.Fatalf("field %s not reset: %q", name, v)
		}
	}
}

func TestContactSubmitRefreshesSessionCookie(t *testing.T) {
	srv, _ := newTestRouter(t)
	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))

	if rec := getWithCookie(srv, "/", cookie); len(rec.Result().Cookies()) != 0 {
		t.Fatalf("plain page view must not rewrite the cookie")
	}
	rec := postContact(srv, cookie, validForm(), false)
	refreshed := sessionCookieFrom(t, rec)

	sessions := mw.NewSessions("test-signing-key", false, nil)
	before, ok := sessions.Decode(cookie.Value)
	if !ok {
		t.Fatalf("issued cookie does not decode")
	}
	after, ok := sessions.Decode(refreshed.Value)
	if !ok {
		t.Fatalf("refreshed cookie does not decode")
	}
	if after.ID != before.ID {
		t.Fatalf("session id changed: %q -> %q", before.ID, after.ID)
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Fatalf("UpdatedAt went backwards: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestAnonymousPageViewsDoNotAllocateForms(t *testing.T) {
	a, srv, _ := newTestApp(t)
	for i := 0; i < 200; i++ {
		if rec := getWithCookie(srv, "/", nil); rec.Code != http.StatusOK {
			t.Fatalf("GET / = %d", rec.Code)
		}
		if rec := getWithCookie(srv, "/contact/form", nil); rec.Code != http.StatusOK {
			t.Fatalf("GET /contact/form = %d", rec.Code)
		}
	}
	if n := a.forms.Len(); n != 0 {
		t.Fatalf("expected no form controllers after anonymous views, got %d", n)
	}

	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))
	doc := parseHTML(t, getWithCookie(srv, "/contact/form", cookie).Body.String())
	forms := findAll(doc, hasAttr("data-status"))
	if len(forms) != 1 {
		t.Fatalf("expected the contact form, got %d nodes", len(forms))
	}
	if v, _ := attr(forms[0], "data-status"); v != contact.Idle.String() {
		t.Fatalf("fresh visitor form status = %q", v)
	}

	_ = postContact(srv, cookie, validForm(), true)
	if n := a.forms.Len(); n != 1 {
		t.Fatalf("expected one controller after a submit, got %d", n)
	}
}

func TestContactSubmitWhileInFlightConflicts(t *testing.T) {
	srv, fb := newTestRouter(t)
	fb.holdContact.Store(true)
	release := sync.OnceFunc(func() { close(fb.release) })
	t.Cleanup(release)
	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- postContact(srv, cookie, validForm(), false) }()
	select {
	case <-fb.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first submission never reached the backend")
	}

	rec := postContact(srv, cookie, validForm(), true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d; body=%s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec.Body.String())
	forms := findAll(doc, hasAttr("data-status"))
	if len(forms) != 1 {
		t.Fatalf("expected the re-rendered form, got %d nodes", len(forms))
	}
	if v, _ := attr(forms[0], "data-status"); v != contact.Submitting.String() {
		t.Fatalf("form status = %q, want %q", v, contact.Submitting.String())
	}
	buttons := findAll(doc, func(n *html.Node) bool { return n.Data == "button" })
	if len(buttons) != 1 {
		t.Fatalf("expected one submit button, got %d", len(buttons))
	}
	if _, disabled := attr(buttons[0], "disabled"); !disabled {
		t.Fatalf("submit button must be disabled while a submission is in flight")
	}
	if got := inputValue(doc, "name"); got != "Maria Silva" {
		t.Fatalf("name not kept during conflict: %q", got)
	}

	release()
	select {
	case rec := <-first:
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("first submission: expected 303, got %d", rec.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first submission did not finish")
	}
	if fb.posts.Load() != 1 {
		t.Fatalf("expected exactly one backend post, got %d", fb.posts.Load())
	}
}

func TestContactSubmitFailureKeepsInput(t *testing.T) {
	srv, fb := newTestRouter(t)
	fb.contactStatus.Store(http.StatusInternalServerError)
	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))

	rec := postContact(srv, cookie, validForm(), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fragment, got %d; body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Fatalf("expected fragment, got full page")
	}
	doc := parseHTML(t, body)
	msgs := findAll(doc, hasAttr("data-form-message"))
	if len(msgs) != 1 {
		t.Fatalf("expected one message node, got %d", len(msgs))
	}
	if strings.Contains(textOf(msgs[0]), "sucesso") {
		t.Fatalf("failure message must not carry the success marker: %q", textOf(msgs[0]))
	}
	if got := inputValue(doc, "name"); got != "Maria Silva" {
		t.Fatalf("name not retained: %q", got)
	}
	if got := inputValue(doc, "message"); got != "Preciso de manutenção." {
		t.Fatalf("message not retained: %q", got)
	}
}

func TestContactSubmitValidationError(t *testing.T) {
	srv, fb := newTestRouter(t)
	cookie := sessionCookieFrom(t, getWithCookie(srv, "/", nil))
	form := validForm()
	form.Set("phone", "")

	rec := postContact(srv, cookie, form, true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d; body=%s", rec.Code, rec.Body.String())
	}
	if fb.posts.Load() != 0 {
		t.Fatalf("backend must not be called for invalid forms")
	}
	doc := parseHTML(t, rec.Body.String())
	errs := findAll(doc, hasAttr("data-field-error"))
	if len(errs) != 1 {
		t.Fatalf("expected one field error, got %d", len(errs))
	}
	if v, _ := attr(errs[0], "data-field-error"); v != "phone" {
		t.Fatalf("unexpected field error %q", v)
	}
}

func TestContactFormFragmentIsPerSession(t *testing.T) {
	srv, fb := newTestRouter(t)
	fb.contactStatus.Store(http.StatusInternalServerError)
	first := sessionCookieFrom(t, getWithCookie(srv, "/", nil))
	second := sessionCookieFrom(t, getWithCookie(srv, "/", nil))

	_ = postContact(srv, first, validForm(), true)

	doc := parseHTML(t, getWithCookie(srv, "/contact/form", second).Body.String())
	if got := inputValue(doc, "name"); got != "" {
		t.Fatalf("second visitor sees first visitor's input: %q", got)
	}
	doc = parseHTML(t, getWithCookie(srv, "/contact/form", first).Body.String())
	if got := inputValue(doc, "name"); got != "Maria Silva" {
		t.Fatalf("first visitor lost input: %q", got)
	}
}

func TestWhatsAppRedirect(t *testing.T) {
	srv, _ := newTestRouter(t)
	rec := getWithCookie(srv, "/whatsapp", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != deeplink.Default() {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestAssetsServed(t *testing.T) {
	srv, _ := newTestRouter(t)
	rec := getWithCookie(srv, "/assets/css/site.css", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}
}
