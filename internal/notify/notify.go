// Package notify delivers admin alerts for server-fault pipeline errors.
// Alert delivery is best-effort: a failed send is logged and never
// propagated to the request path.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

// Alerter sends an operator notification. Implementations must be safe
// for concurrent use.
type Alerter interface {
	Alert(subject, body string)
}

// Nop discards all alerts. Used when SMTP is not configured.
type Nop struct{}

func (Nop) Alert(subject, body string) {}

// SMTPAlerter sends alerts over SMTP with PLAIN auth. Sends are
// throttled per subject so a failing backend does not flood the admin
// inbox.
type SMTPAlerter struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string

	mu       sync.Mutex
	lastSent map[string]time.Time
	throttle time.Duration

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPAlerter builds an SMTPAlerter. Alerts with the same subject are
// suppressed for 15 minutes after a successful send.
func NewSMTPAlerter(host string, port int, username, password, from, to string) *SMTPAlerter {
	return &SMTPAlerter{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		lastSent: make(map[string]time.Time),
		throttle: 15 * time.Minute,
		send:     smtp.SendMail,
	}
}

// Alert sends the message asynchronously. Throttled duplicates are
// dropped silently.
func (a *SMTPAlerter) Alert(subject, body string) {
	a.mu.Lock()
	if last, ok := a.lastSent[subject]; ok && time.Since(last) < a.throttle {
		a.mu.Unlock()
		return
	}
	a.lastSent[subject] = time.Now()
	a.mu.Unlock()

	go func() {
		if err := a.deliver(subject, body); err != nil {
			slog.Error("Alert delivery failed", "subject", subject, "error", err)
		}
	}()
}

func (a *SMTPAlerter) deliver(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	var auth smtp.Auth
	if a.username != "" {
		auth = smtp.PlainAuth("", a.username, a.password, a.host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", a.from)
	fmt.Fprintf(&msg, "To: %s\r\n", a.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	return a.send(addr, auth, a.from, []string{a.to}, []byte(msg.String()))
}

var _ Alerter = (*SMTPAlerter)(nil)
var _ Alerter = Nop{}
