// Package deeplink builds WhatsApp click-to-chat links.
package deeplink

import (
	"net/url"
	"strings"
)

const (
	// Host is the click-to-chat host.
	Host = "wa.me"
	// DefaultPhone is the business number in international format, digits only.
	DefaultPhone = "5567999999999"
	// DefaultMessage pre-fills the chat with a quote request.
	DefaultMessage = "Olá! Gostaria de solicitar um orçamento para seus serviços."
)

// Build returns https://wa.me/<phone>?text=<message>. Every byte of message outside the
// unreserved set (ALPHA / DIGIT / "-" / "." / "_" / "~") is percent-encoded once;
// spaces become %20.
func Build(phone, message string) string {
	return "https://" + Host + "/" + url.PathEscape(phone) + "?text=" + encodeComponent(message)
}

// Default builds the link for the business number and default message.
func Default() string {
	return Build(DefaultPhone, DefaultMessage)
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
