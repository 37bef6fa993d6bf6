package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/domain"
)

// Resource names reported to subscribers.
const (
	ResourceServices     = "services"
	ResourceTestimonials = "testimonials"
)

// Source supplies both catalog lists. *backend.Client satisfies it.
type Source interface {
	Services(ctx context.Context) ([]domain.ServiceItem, error)
	Testimonials(ctx context.Context) ([]domain.Testimonial, error)
}

// Catalog owns the services and testimonials lists. Each list has its own loader and
// lock; a failure in one never affects the other.
type Catalog struct {
	services     *Loader[domain.ServiceItem]
	testimonials *Loader[domain.Testimonial]

	startOnce sync.Once

	subMu       sync.RWMutex
	subscribers []func(resource string)
}

// New wires the two loaders against src.
func New(src Source, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		services:     NewLoader[domain.ServiceItem](ResourceServices, src.Services, logger.Named("catalog")),
		testimonials: NewLoader[domain.Testimonial](ResourceTestimonials, src.Testimonials, logger.Named("catalog")),
	}
	c.services.setOnChange(c.publish)
	c.testimonials.setOnChange(c.publish)
	return c
}

// Start launches both loads in their own goroutines and returns immediately. There is no
// join point: each list becomes visible as soon as its own load completes. Only the first
// call has any effect.
func (c *Catalog) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.services.Load(ctx)
		go c.testimonials.Load(ctx)
	})
}

// Services returns the current services list state.
func (c *Catalog) Services() LoadState[domain.ServiceItem] { return c.services.State() }

// Testimonials returns the current testimonials list state.
func (c *Catalog) Testimonials() LoadState[domain.Testimonial] { return c.testimonials.State() }

// ServiceTitles returns the titles of the loaded services in display order.
func (c *Catalog) ServiceTitles() []string {
	items := c.services.State().Items
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	return titles
}

// Subscribe registers fn to be called with the resource name whenever a list changes.
// Callbacks run on the loading goroutine and must not block.
func (c *Catalog) Subscribe(fn func(resource string)) {
	if fn == nil {
		return
	}
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.subMu.Unlock()
}

func (c *Catalog) publish(resource string) {
	c.subMu.RLock()
	subs := make([]func(string), len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(resource)
	}
}
