package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"sigmarservicos.com.br/sigmar-web/internal/contact"
	"sigmarservicos.com.br/sigmar-web/internal/domain"
	"sigmarservicos.com.br/sigmar-web/internal/site"
)

func renderFragment(t *testing.T, name string, data any) *goquery.Document {
	t.Helper()
	devMode = true
	templatesDir = "../../templates"
	rec := httptest.NewRecorder()
	render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, name, data)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func TestContactFormSubmittingDisablesButton(t *testing.T) {
	view := site.NewFormView(contact.Snapshot{
		Fields: domain.ContactForm{Name: "Maria", Service: "Elétrica"},
		Status: contact.Submitting,
	}, []string{"Ar-condicionado", "Elétrica"}, site.ContactCopy{SubmitLabel: "Enviar", SubmittingLabel: "Enviando..."}, nil)

	doc := renderFragment(t, "contact_form", view)
	button := doc.Find("button[type=submit]")
	_, disabled := button.Attr("disabled")
	require.True(t, disabled)
	require.Equal(t, "Enviando...", strings.TrimSpace(button.Text()))
	require.Equal(t, "Elétrica", doc.Find("select[name=service] option[selected]").AttrOr("value", ""))
	require.Equal(t, 0, doc.Find("[data-form-message]").Length())
	require.Equal(t, "submitting", doc.Find("#contact-form").AttrOr("data-status", ""))
}

func TestContactFormMessageTone(t *testing.T) {
	cases := []struct {
		name    string
		snap    contact.Snapshot
		class   string
		enabled bool
	}{
		{"success", contact.Snapshot{Status: contact.Succeeded, Message: contact.SuccessMessage}, "form-message-success", true},
		{"failure", contact.Snapshot{Status: contact.Failed, Message: contact.FailureMessage}, "form-message-error", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view := site.NewFormView(tc.snap, nil, site.ContactCopy{SubmitLabel: "Enviar"}, nil)
			doc := renderFragment(t, "contact_form", view)
			msg := doc.Find("[data-form-message]")
			require.Equal(t, 1, msg.Length())
			require.True(t, msg.HasClass(tc.class))
			_, disabled := doc.Find("button[type=submit]").Attr("disabled")
			require.Equal(t, !tc.enabled, disabled)
		})
	}
}

func TestRenderUnknownTemplateFails(t *testing.T) {
	devMode = true
	templatesDir = "../../templates"
	rec := httptest.NewRecorder()
	render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "missing", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
