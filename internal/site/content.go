package site

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// Content is the static copy of the page, loaded from a YAML file.
type Content struct {
	Business     Business    `yaml:"business"`
	SEO          SEO         `yaml:"seo"`
	About        About       `yaml:"about"`
	Services     SectionCopy `yaml:"services"`
	Reasons      Reasons     `yaml:"reasons"`
	Testimonials SectionCopy `yaml:"testimonials"`
	Contact      ContactCopy `yaml:"contact"`
}

// Business describes who runs the site.
type Business struct {
	Name         string `yaml:"name"`
	Headline     string `yaml:"headline"`
	Tagline      string `yaml:"tagline"`
	PhoneDisplay string `yaml:"phone_display"`
	Region       string `yaml:"region"`
	Footer       string `yaml:"footer"`
	FooterNote   string `yaml:"footer_note"`
}

// SEO holds page metadata.
type SEO struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// About is the about section; Body is markdown.
type About struct {
	Title      string   `yaml:"title"`
	Icon       string   `yaml:"icon"`
	Body       string   `yaml:"body"`
	Highlights []string `yaml:"highlights"`

	html template.HTML
}

// HTML returns the rendered, sanitised about body.
func (a About) HTML() template.HTML { return a.html }

// SectionCopy is the heading block of a section.
type SectionCopy struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	CTA      string `yaml:"cta"`
}

// Reasons is the "why choose us" grid.
type Reasons struct {
	Title string   `yaml:"title"`
	Items []Reason `yaml:"items"`
}

// Reason is one tile of the grid.
type Reason struct {
	Icon  string `yaml:"icon"`
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// ContactCopy labels the contact section.
type ContactCopy struct {
	Title              string `yaml:"title"`
	Subtitle           string `yaml:"subtitle"`
	FormTitle          string `yaml:"form_title"`
	ServicePlaceholder string `yaml:"service_placeholder"`
	SubmitLabel        string `yaml:"submit_label"`
	SubmittingLabel    string `yaml:"submitting_label"`
}

// ErrMissingBusinessName is returned when the content file does not name the business.
var ErrMissingBusinessName = errors.New("site: business.name is required")

var markdownPolicy = bluemonday.UGCPolicy()

// LoadContent reads and parses the YAML content file.
func LoadContent(path string) (Content, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("site: read content %s: %w", path, err)
	}
	return ParseContent(raw)
}

// ParseContent parses YAML content and renders the markdown fields.
func ParseContent(raw []byte) (Content, error) {
	var c Content
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Content{}, fmt.Errorf("site: parse content: %w", err)
	}
	if strings.TrimSpace(c.Business.Name) == "" {
		return Content{}, ErrMissingBusinessName
	}
	html, err := renderMarkdown(c.About.Body)
	if err != nil {
		return Content{}, err
	}
	c.About.html = html
	c.applyDefaults()
	return c, nil
}

func (c *Content) applyDefaults() {
	if c.SEO.Title == "" {
		c.SEO.Title = c.Business.Name
	}
	if c.Contact.SubmitLabel == "" {
		c.Contact.SubmitLabel = "Enviar Mensagem"
	}
	if c.Contact.SubmittingLabel == "" {
		c.Contact.SubmittingLabel = "Enviando..."
	}
	if c.Contact.ServicePlaceholder == "" {
		c.Contact.ServicePlaceholder = "Selecione o Serviço"
	}
}

func renderMarkdown(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("site: render markdown: %w", err)
	}
	return template.HTML(markdownPolicy.SanitizeBytes(buf.Bytes())), nil
}
