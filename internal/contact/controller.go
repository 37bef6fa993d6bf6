package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/domain"
)

// Status is the submission state of a contact form.
type Status int

const (
	// Idle is the initial state.
	Idle Status = iota
	// Submitting means a request is in flight.
	Submitting
	// Succeeded means the last attempt was acknowledged by the backend.
	Succeeded
	// Failed means the last attempt errored.
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s is Succeeded or Failed.
func (s Status) Terminal() bool { return s == Succeeded || s == Failed }

const (
	// SuccessMarker appears in the success message and never in the failure message.
	SuccessMarker = "sucesso"

	SuccessMessage = "Mensagem enviada com sucesso! Entraremos em contato em breve."
	FailureMessage = "Erro ao enviar mensagem. Tente novamente ou entre em contato via WhatsApp."
)

var (
	// ErrUnknownField is returned by SetField for names outside the five form fields.
	ErrUnknownField = errors.New("contact: unknown field")
	// ErrSubmissionInFlight is returned by Submit while a previous attempt is still running.
	ErrSubmissionInFlight = errors.New("contact: submission already in flight")
)

// Submitter performs the remote write. *backend.Client satisfies it.
type Submitter interface {
	SubmitContact(ctx context.Context, form domain.ContactForm) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, form domain.ContactForm) error

// SubmitContact calls f.
func (f SubmitterFunc) SubmitContact(ctx context.Context, form domain.ContactForm) error {
	return f(ctx, form)
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Fields  domain.ContactForm
	Status  Status
	Message string
}

// InFlight reports whether a submission is running.
func (s Snapshot) InFlight() bool { return s.Status == Submitting }

// Positive reports whether the message carries the success marker.
func (s Snapshot) Positive() bool { return strings.Contains(s.Message, SuccessMarker) }

// EventKind distinguishes field edits from status transitions.
type EventKind int

const (
	// FieldChanged is emitted after every successful SetField, changed value or not.
	FieldChanged EventKind = iota
	// StatusChanged is emitted when a submission starts and when it settles.
	StatusChanged
)

// Event is delivered to subscribers after every state change.
type Event struct {
	Kind     EventKind
	Field    string
	Snapshot Snapshot
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for submission outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns the five form fields and the submission state machine.
//
// Field edits are accepted in every state, including while a submission is in flight.
// Submit refuses to start a second request while one is running; that guard is checked
// synchronously under the controller lock.
type Controller struct {
	submitter   Submitter
	logger      *zap.Logger
	submissions metric.Int64Counter

	mu      sync.Mutex
	fields  domain.ContactForm
	status  Status
	message string
	subs    []func(Event)
}

// NewController returns an Idle controller with empty fields.
func NewController(submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		submitter: submitter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	counter, err := otel.Meter("sigmarservicos.com.br/sigmar-web/internal/contact").Int64Counter(
		"sigmar.contact.submissions",
		metric.WithDescription("Contact form submission attempts by outcome"),
	)
	if err != nil {
		c.logger.Warn("contact: unable to register submission counter", zap.Error(err))
	}
	c.submissions = counter
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every subsequent state change. fn runs on the goroutine that
// caused the change, after the controller lock is released.
func (c *Controller) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// SetField replaces exactly one named field. The status is left as is.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	updated, ok := c.fields.With(name, value)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.fields = updated
	ev := Event{Kind: FieldChanged, Field: name, Snapshot: c.snapshotLocked()}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	dispatch(subs, ev)
	return nil
}

// Validate checks that every field is non-empty. The returned error is a
// validation.Errors keyed by field name.
func (c *Controller) Validate() error {
	return ValidateForm(c.Snapshot().Fields)
}

// ValidateForm checks that every field of f is non-empty.
func ValidateForm(f domain.ContactForm) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required.Error("informe seu nome")),
		validation.Field(&f.Email, validation.Required.Error("informe seu e-mail")),
		validation.Field(&f.Phone, validation.Required.Error("informe seu telefone")),
		validation.Field(&f.Service, validation.Required.Error("selecione o serviço")),
		validation.Field(&f.Message, validation.Required.Error("escreva sua mensagem")),
	)
}

// Submit sends the current fields through the Submitter.
//
// A non-nil error means no request was issued: either validation failed or another
// submission is still running. Remote failures are not returned; they end in the Failed
// status with FailureMessage and the fields kept for a retry. Success resets every field.
// The Submitting status is always left exactly once, even if the Submitter panics.
func (c *Controller) Submit(ctx context.Context) (snap Snapshot, err error) {
	form, err := c.begin()
	if err != nil {
		return c.Snapshot(), err
	}

	outcome := Failed
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("contact submission panicked", zap.Any("panic", r))
			outcome = Failed
		}
		snap = c.finish(ctx, outcome)
		err = nil
	}()

	if submitErr := c.submitter.SubmitContact(ctx, form); submitErr != nil {
		c.logger.Warn("contact submission failed", zap.Error(submitErr))
		return
	}
	outcome = Succeeded
	return
}

func (c *Controller) begin() (domain.ContactForm, error) {
	c.mu.Lock()
	if c.status == Submitting {
		c.mu.Unlock()
		return domain.ContactForm{}, ErrSubmissionInFlight
	}
	form := c.fields
	if err := ValidateForm(form); err != nil {
		c.mu.Unlock()
		return domain.ContactForm{}, err
	}
	c.message = ""
	c.status = Submitting
	ev := Event{Kind: StatusChanged, Snapshot: c.snapshotLocked()}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	dispatch(subs, ev)
	return form, nil
}

func (c *Controller) finish(ctx context.Context, outcome Status) Snapshot {
	c.mu.Lock()
	switch outcome {
	case Succeeded:
		c.fields = domain.ContactForm{}
		c.message = SuccessMessage
	default:
		outcome = Failed
		c.message = FailureMessage
	}
	c.status = outcome
	snap := c.snapshotLocked()
	subs := c.subscribersLocked()
	c.mu.Unlock()

	if c.submissions != nil {
		c.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}
	c.logger.Info("contact submission finished", zap.Stringer("status", outcome))
	dispatch(subs, Event{Kind: StatusChanged, Snapshot: snap})
	return snap
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{Fields: c.fields, Status: c.status, Message: c.message}
}

func (c *Controller) subscribersLocked() []func(Event) {
	if len(c.subs) == 0 {
		return nil
	}
	out := make([]func(Event), len(c.subs))
	copy(out, c.subs)
	return out
}

func dispatch(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
