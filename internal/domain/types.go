package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an opaque identifier issued by the backend. The wire form may be a JSON string or number.
type ID string

// UnmarshalJSON accepts string, number and null identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as text.
func (id ID) String() string { return string(id) }

// ServiceItem is one entry of the services catalog.
type ServiceItem struct {
	ID          ID     `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Testimonial is a customer review shown on the page.
type Testimonial struct {
	ID         ID     `json:"id"`
	DocumentID ID     `json:"_id"`
	Name       string `json:"name"`
	Service    string `json:"service"`
	Comment    string `json:"comment"`
	// Rating is displayed as-is; values outside 0-5 are not clamped.
	Rating int `json:"rating"`
}

// Key returns a stable identifier for rendering: the id, then the stored document id,
// then the positional index.
func (t Testimonial) Key(index int) string {
	if t.ID != "" {
		return t.ID.String()
	}
	if t.DocumentID != "" {
		return t.DocumentID.String()
	}
	return strconv.Itoa(index)
}

// ContactForm is the payload of a contact inquiry. Every field is required.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// Contact form field names, as used by the HTML form and the JSON payload.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldService = "service"
	FieldMessage = "message"
)

// ContactFieldNames lists the form fields in display order.
func ContactFieldNames() []string {
	return []string{FieldName, FieldEmail, FieldPhone, FieldService, FieldMessage}
}

// Get returns the value of the named field.
func (f ContactForm) Get(name string) (string, bool) {
	switch name {
	case FieldName:
		return f.Name, true
	case FieldEmail:
		return f.Email, true
	case FieldPhone:
		return f.Phone, true
	case FieldService:
		return f.Service, true
	case FieldMessage:
		return f.Message, true
	default:
		return "", false
	}
}

// With returns a copy of f with exactly the named field replaced.
func (f ContactForm) With(name, value string) (ContactForm, bool) {
	switch name {
	case FieldName:
		f.Name = value
	case FieldEmail:
		f.Email = value
	case FieldPhone:
		f.Phone = value
	case FieldService:
		f.Service = value
	case FieldMessage:
		f.Message = value
	default:
		return f, false
	}
	return f, true
}
