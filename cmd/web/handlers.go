package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/backend"
	"sigmarservicos.com.br/sigmar-web/internal/catalog"
	"sigmarservicos.com.br/sigmar-web/internal/contact"
	"sigmarservicos.com.br/sigmar-web/internal/deeplink"
	"sigmarservicos.com.br/sigmar-web/internal/domain"
	mw "sigmarservicos.com.br/sigmar-web/internal/middleware"
	"sigmarservicos.com.br/sigmar-web/internal/observability"
	"sigmarservicos.com.br/sigmar-web/internal/site"
)

const contactAnchor = "/#contato"

// HealthChecker reports the backend status for readiness probes.
type HealthChecker interface {
	Health(ctx context.Context) (backend.Health, error)
}

// app carries the dependencies shared by handlers.
type app struct {
	content  site.Content
	catalog  *catalog.Catalog
	forms    *contact.Registry
	health   HealthChecker
	readyTTL time.Duration
	clock    func() time.Time
}

// snapshot returns the visitor's form state without creating a controller. Visitors who
// never submitted see the idle, empty form.
func (a *app) snapshot(r *http.Request) contact.Snapshot {
	if ctrl, ok := a.forms.Peek(mw.SessionFromContext(r.Context()).ID); ok {
		return ctrl.Snapshot()
	}
	return contact.Snapshot{}
}

func (a *app) page(snap contact.Snapshot, validationErr error) site.Page {
	return site.NewPage(site.PageInput{
		Content:       a.content,
		Services:      a.catalog.Services().Items,
		Testimonials:  a.catalog.Testimonials().Items,
		Snapshot:      snap,
		ValidationErr: validationErr,
		Year:          a.clock().Year(),
	})
}

// HomeHandler renders the landing page.
func (a *app) HomeHandler(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "base", a.page(a.snapshot(r), nil))
}

// ContactFormFrag renders only the contact form for htmx swaps.
func (a *app) ContactFormFrag(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "contact_form", a.page(a.snapshot(r), nil).Form)
}

// ContactSubmitHandler applies the posted fields to the visitor's form and submits it.
// The backend call is detached from the request context so a client disconnect does not
// abort a submission that already started.
func (a *app) ContactSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		mw.WriteError(w, r, http.StatusBadRequest, "formulário inválido")
		return
	}
	logger := observability.FromContext(r.Context())
	sess := mw.SessionFromContext(r.Context())
	sess.MarkDirty()
	ctrl := a.forms.Get(sess.ID)
	for _, name := range domain.ContactFieldNames() {
		if _, ok := r.PostForm[name]; !ok {
			continue
		}
		if err := ctrl.SetField(name, r.PostForm.Get(name)); err != nil {
			logger.Warn("contact field rejected", zap.String("field", name), zap.Error(err))
		}
	}

	_, err := ctrl.Submit(context.WithoutCancel(r.Context()))
	status := http.StatusOK
	var formErr error
	var verrs validation.Errors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		status = http.StatusUnprocessableEntity
		formErr = err
	case errors.Is(err, contact.ErrSubmissionInFlight):
		status = http.StatusConflict
	default:
		logger.Error("contact submit failed", zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, "erro interno")
		return
	}

	if mw.IsHTMX(r.Context()) {
		render(w, r, status, "contact_form", a.page(ctrl.Snapshot(), formErr).Form)
		return
	}
	if status != http.StatusOK {
		render(w, r, status, "base", a.page(ctrl.Snapshot(), formErr))
		return
	}
	http.Redirect(w, r, contactAnchor, http.StatusSeeOther)
}

// WhatsAppHandler redirects to the click-to-chat link.
func (a *app) WhatsAppHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, deeplink.Default(), http.StatusFound)
}

// HealthzHandler is the liveness probe.
func (a *app) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readiness struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Message string `json:"message,omitempty"`
}

// ReadyzHandler reports whether the backend answers its health endpoint.
func (a *app) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.readyTTL)
	defer cancel()

	body := readiness{Status: "ready", Backend: "healthy"}
	code := http.StatusOK
	h, err := a.health.Health(ctx)
	switch {
	case err != nil:
		observability.FromContext(r.Context()).Warn("backend health check failed", zap.Error(err))
		body = readiness{Status: "unavailable", Backend: "unreachable"}
		code = http.StatusServiceUnavailable
	case !h.Healthy():
		body = readiness{Status: "unavailable", Backend: h.Status, Message: h.Message}
		code = http.StatusServiceUnavailable
	default:
		body.Message = h.Message
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
