package email

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/gomail.v2"

	"feed-digest/app/database"
	"feed-digest/app/feed"
	"feed-digest/app/settings"
)

var (
	// ErrNotConfigured means the SMTP transport settings are incomplete.
	ErrNotConfigured = errors.New("email delivery not configured")

	// ErrNoRecipient means no recipient address is set.
	ErrNoRecipient = errors.New("no recipient address configured")
)

var (
	blockBreakRe  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|blockquote)>`)
	lineBreakRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	multiNewline  = regexp.MustCompile(`\n{3,}`)
	textStripOnly = bluemonday.StrictPolicy()
)

// Newsletter composes digest emails and delivers them over SMTP.
type Newsletter struct {
	settings *settings.Settings

	// send is swapped out in tests to avoid a real SMTP dial.
	send func(m *gomail.Message) error
}

func NewNewsletter(stg *settings.Settings) *Newsletter {
	n := &Newsletter{settings: stg}
	n.send = n.dialAndSend

	return n
}

// Send delivers one digest to the configured recipient. Returns the
// recipient address used, so the caller can record it on the digest.
func (n *Newsletter) Send(source *feed.Source, digest *database.Digest) (string, error) {
	recipient := n.settings.Email.Recipient
	if recipient == "" {
		return "", ErrNoRecipient
	}

	if err := n.deliver(recipient, n.subject(digest.Title), n.composeHTML(source.Label(), digest)); err != nil {
		return "", err
	}

	slog.Info("Digest email sent", "feed", source.Name, "digest_id", digest.ID, "recipient", recipient)

	return recipient, nil
}

// SendTest delivers a short fixed message to verify the SMTP settings.
func (n *Newsletter) SendTest(recipient string) error {
	if recipient == "" {
		recipient = n.settings.Email.Recipient
	}
	if recipient == "" {
		return ErrNoRecipient
	}

	body := "<p>This is a test message confirming your digest email settings work.</p>"

	return n.deliver(recipient, n.subject("Test Email"), wrapHTML("Feed Digest", "Test Email", body))
}

func (n *Newsletter) deliver(recipient, subject, htmlBody string) error {
	email := n.settings.Email
	if email.SMTPHost == "" || email.FromAddress == "" {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", email.FromAddress, email.FromName)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", htmlToText(htmlBody))
	m.AddAlternative("text/html", htmlBody)

	if err := n.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (n *Newsletter) dialAndSend(m *gomail.Message) error {
	email := n.settings.Email

	port := email.SMTPPort
	if port == 0 {
		port = 587
	}

	dialer := gomail.NewDialer(email.SMTPHost, port, email.SMTPUsername, email.SMTPPassword)

	return dialer.DialAndSend(m)
}

func (n *Newsletter) subject(title string) string {
	prefix := n.settings.Email.SubjectPrefix
	if prefix == "" {
		return title
	}

	return strings.TrimSpace(prefix) + " " + title
}

func (n *Newsletter) composeHTML(feedLabel string, digest *database.Digest) string {
	return wrapHTML(feedLabel, digest.Title, digest.Content)
}

// wrapHTML puts the digest body into a minimal email-safe page with a
// header naming the feed and a generated-on footer.
func wrapHTML(feedLabel, title, body string) string {
	var out strings.Builder

	out.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n")
	out.WriteString("<body style=\"font-family: Georgia, serif; max-width: 640px; margin: 0 auto; padding: 16px; color: #222;\">\n")
	fmt.Fprintf(&out, "<h1 style=\"font-size: 22px; border-bottom: 2px solid #222; padding-bottom: 8px;\">%s</h1>\n", html.EscapeString(feedLabel))
	fmt.Fprintf(&out, "<p style=\"color: #666; font-size: 14px;\">%s</p>\n", html.EscapeString(title))
	out.WriteString(body)
	out.WriteString("\n<hr style=\"margin-top: 32px; border: none; border-top: 1px solid #ccc;\">\n")
	fmt.Fprintf(&out, "<p style=\"color: #999; font-size: 12px;\">Generated on %s by Feed Digest.</p>\n", time.Now().Format("January 2, 2006"))
	out.WriteString("</body>\n</html>")

	return out.String()
}

// htmlToText produces the plain-text alternative part: block-level tags
// become line breaks, everything else is stripped.
func htmlToText(htmlBody string) string {
	text := blockBreakRe.ReplaceAllString(htmlBody, "\n\n")
	text = lineBreakRe.ReplaceAllString(text, "\n")
	text = textStripOnly.Sanitize(text)
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
