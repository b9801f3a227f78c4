// Package sharelink builds the public links a registrant shares with invitees.
package sharelink

import (
	"net/url"
	"strings"
)

const whatsAppBaseURL = "https://wa.me/"

const inviteMessage = "Ciao! Ti invito a Natale con i Cuccioli da Zooplanet Pantigliate. " +
	"È un evento gratuito fantastico! Registrati qui: "

// Build returns the canonical referral link {origin}/?code={code}. It is the
// only way a later submission gets its referred_by value.
func Build(origin, code string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	return origin + "/?code=" + url.QueryEscape(code)
}

// StatusPage returns the thank-you page where a registrant follows their
// referral progress.
func StatusPage(origin, code string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	return origin + "/thank-you?code=" + url.QueryEscape(code)
}

// WhatsApp returns a wa.me deep link pre-filled with the invite message for link.
func WhatsApp(link string) string {
	return whatsAppBaseURL + "?text=" + url.QueryEscape(inviteMessage+link)
}

// CodeFromQuery extracts the referral code from query values, accepting the
// legacy "ref" parameter when "code" is absent.
func CodeFromQuery(values url.Values) string {
	if code := strings.TrimSpace(values.Get("code")); code != "" {
		return code
	}

	return strings.TrimSpace(values.Get("ref"))
}
