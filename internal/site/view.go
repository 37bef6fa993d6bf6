package site

import (
	"errors"
	"html"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/microcosm-cc/bluemonday"

	"sigmarservicos.com.br/sigmar-web/internal/contact"
	"sigmarservicos.com.br/sigmar-web/internal/deeplink"
	"sigmarservicos.com.br/sigmar-web/internal/domain"
)

// StarGlyph is repeated once per rating point.
const StarGlyph = "⭐"

var plainText = bluemonday.StrictPolicy()

// Page is the view model for the single landing page.
type Page struct {
	Content      Content
	Services     []ServiceCard
	Testimonials []TestimonialCard
	Form         FormView
	WhatsAppURL  string
	Year         int
}

// ServiceCard is one rendered catalog entry.
type ServiceCard struct {
	Key         string
	Icon        string
	Title       string
	Description string
}

// TestimonialCard is one rendered review.
type TestimonialCard struct {
	Key     string
	Name    string
	Service string
	Comment string
	Rating  int
	Stars   string
}

// FormView carries the contact form state into templates.
type FormView struct {
	Fields         domain.ContactForm
	Status         string
	Message        string
	Positive       bool
	Submitting     bool
	ServiceOptions []ServiceOption
	Errors         map[string]string
	Copy           ContactCopy
}

// ServiceOption is one entry of the service select. Value is the catalog title as
// submitted; Label is its plain-text rendering.
type ServiceOption struct {
	Value    string
	Label    string
	Selected bool
}

// HasMessage reports whether a submission outcome should be shown.
func (f FormView) HasMessage() bool { return f.Message != "" }

// Error returns the validation message for a field, if any.
func (f FormView) Error(field string) string { return f.Errors[field] }

// Stars renders r star glyphs. Negative ratings render none; ratings above five are not clamped.
func Stars(r int) string {
	if r <= 0 {
		return ""
	}
	return strings.Repeat(StarGlyph, r)
}

// Text strips any markup from backend-provided text. The result is plain text; templates
// escape it on output.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}

// ServiceCards converts catalog entries in order.
func ServiceCards(items []domain.ServiceItem) []ServiceCard {
	cards := make([]ServiceCard, 0, len(items))
	for i, item := range items {
		key := item.ID.String()
		if key == "" {
			key = strconv.Itoa(i)
		}
		cards = append(cards, ServiceCard{
			Key:         key,
			Icon:        Text(item.Icon),
			Title:       Text(item.Title),
			Description: Text(item.Description),
		})
	}
	return cards
}

// TestimonialCards converts reviews in order.
func TestimonialCards(items []domain.Testimonial) []TestimonialCard {
	cards := make([]TestimonialCard, 0, len(items))
	for i, t := range items {
		cards = append(cards, TestimonialCard{
			Key:     t.Key(i),
			Name:    Text(t.Name),
			Service: Text(t.Service),
			Comment: Text(t.Comment),
			Rating:  t.Rating,
			Stars:   Stars(t.Rating),
		})
	}
	return cards
}

// NewFormView builds the form view from a controller snapshot. serviceTitles feeds the
// service select; a currently selected value missing from the catalog is kept as an option.
// validationErr, when it is a validation.Errors, is flattened into per-field messages.
func NewFormView(snap contact.Snapshot, serviceTitles []string, labels ContactCopy, validationErr error) FormView {
	view := FormView{
		Fields:     snap.Fields,
		Status:     snap.Status.String(),
		Message:    snap.Message,
		Positive:   snap.Positive(),
		Submitting: snap.InFlight(),
		Copy:       labels,
	}

	selected := snap.Fields.Service
	found := false
	for _, title := range serviceTitles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		label := Text(title)
		if label == "" {
			label = strings.TrimSpace(title)
		}
		opt := ServiceOption{Value: title, Label: label, Selected: title == selected}
		found = found || opt.Selected
		view.ServiceOptions = append(view.ServiceOptions, opt)
	}
	if selected != "" && !found {
		view.ServiceOptions = append(view.ServiceOptions, ServiceOption{Value: selected, Label: selected, Selected: true})
	}

	var verrs validation.Errors
	if errors.As(validationErr, &verrs) {
		view.Errors = make(map[string]string, len(verrs))
		for field, err := range verrs {
			view.Errors[field] = err.Error()
		}
	}
	return view
}

// PageInput gathers everything NewPage needs.
type PageInput struct {
	Content       Content
	Services      []domain.ServiceItem
	Testimonials  []domain.Testimonial
	Snapshot      contact.Snapshot
	ValidationErr error
	Year          int
}

// NewPage assembles the landing page view. Empty catalogs render empty sections.
func NewPage(in PageInput) Page {
	titles := make([]string, 0, len(in.Services))
	for _, s := range in.Services {
		titles = append(titles, s.Title)
	}
	return Page{
		Content:      in.Content,
		Services:     ServiceCards(in.Services),
		Testimonials: TestimonialCards(in.Testimonials),
		Form:         NewFormView(in.Snapshot, titles, in.Content.Contact, in.ValidationErr),
		WhatsAppURL:  deeplink.Default(),
		Year:         in.Year,
	}
}
