package output

import (
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"threatintel/internal/config"
	"threatintel/internal/domain"
)

func TestEmailSummary(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	e := NewEmail(config.EmailConfig{
		SMTPHost:   "mail.internal",
		SMTPPort:   1025,
		Sender:     "threat-intel@pihole.local",
		Recipients: []string{"ops@example.com"},
	}, slog.Default())
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	e.EmitSummary([]domain.DomainEvaluation{
		{Domain: "bad.example", ThreatLevel: domain.ThreatMalicious, Confidence: 95,
			Reasoning: "blocklisted", Indicators: []string{"spamhaus"}},
		{Domain: "ok.example", ThreatLevel: domain.ThreatBenign, Confidence: 85},
	}, domain.RunStats{MaliciousCount: 1, SuspiciousCount: 0, TotalDomainsQueried: 2})

	if gotAddr != "mail.internal:1025" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "threat-intel@pihole.local" || len(gotTo) != 1 {
		t.Errorf("envelope = %q -> %v", gotFrom, gotTo)
	}

	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: DNS Threat Report: 1 malicious, 0 suspicious\r\n") {
		t.Errorf("subject missing:\n%s", msg)
	}
	if !strings.Contains(msg, "Content-Type: text/html") {
		t.Error("missing html content type")
	}
	if !strings.Contains(msg, "bad.example") || !strings.Contains(msg, "spamhaus") {
		t.Error("threat row missing from report body")
	}
	if !strings.Contains(msg, "1 domains evaluated as benign") {
		t.Errorf("benign count missing:\n%s", msg)
	}
	if !strings.Contains(msg, "2025-06-01 12:00 UTC") {
		t.Error("timestamp missing from report body")
	}
}

func TestEmailAlertIsNoop(t *testing.T) {
	called := false
	e := NewEmail(config.EmailConfig{}, nil)
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	e.EmitAlert(domain.DomainEvaluation{Domain: "bad.example"})
	if called {
		t.Error("EmitAlert must not send mail")
	}
}
