package provider

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"net/url"
	"strings"
)

// SMTPRelay implements the Provider interface over a plain SMTP relay.
// It is the last-resort transport in the failover chain and carries no
// stats or contact capabilities.
type SMTPRelay struct {
	addr string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPRelay creates an SMTP relay provider. The relay URL may be a bare
// host:port or an smtp:// URL with optional userinfo for PLAIN auth.
func NewSMTPRelay(relayURL string) (*SMTPRelay, error) {
	r := &SMTPRelay{send: smtp.SendMail}

	if !strings.Contains(relayURL, "://") {
		r.addr = relayURL
		return r, nil
	}

	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("smtp: parse relay url: %w", err)
	}
	if u.Scheme != "smtp" {
		return nil, fmt.Errorf("smtp: unsupported relay scheme %q", u.Scheme)
	}
	r.addr = u.Host
	if u.User != nil {
		pass, _ := u.User.Password()
		host := u.Hostname()
		r.auth = smtp.PlainAuth("", u.User.Username(), pass, host)
	}
	return r, nil
}

func (r *SMTPRelay) Name() string { return "smtp" }

// Send relays the message in a single attempt. All relay failures are
// non-retryable; the chain has nowhere left to go.
func (r *SMTPRelay) Send(ctx context.Context, msg *Message) error {
	body := buildMIME(msg)
	if err := r.send(r.addr, r.auth, msg.From, []string{msg.To}, body); err != nil {
		return &ProviderError{
			Provider:  "smtp",
			Message:   err.Error(),
			Retryable: false,
		}
	}
	return nil
}

// buildMIME assembles a multipart/alternative message with the text part
// first, per RFC 2046 ordering from least to most faithful.
func buildMIME(msg *Message) []byte {
	const boundary = "mailcast-alt-7f2c9b"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTML != "" && msg.Text != "":
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Text)
		fmt.Fprintf(&b, "\r\n--%s\r\n", boundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(msg.HTML)
		fmt.Fprintf(&b, "\r\n--%s--\r\n", boundary)
	case msg.HTML != "":
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(msg.HTML)
	default:
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Text)
	}
	return []byte(b.String())
}
