package output

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"threatintel/internal/config"
	"threatintel/internal/domain"
)

//go:embed report.html.tmpl
var reportFS embed.FS

var reportTmpl = template.Must(
	template.New("report.html.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(reportFS, "report.html.tmpl"))

// sendFunc matches smtp.SendMail; a seam for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends the whole run as one HTML digest. Individual alerts ride in
// the digest, so EmitAlert is a no-op.
type Email struct {
	cfg    config.EmailConfig
	send   sendFunc
	logger *slog.Logger
	now    func() time.Time
}

// NewEmail builds the email handler.
func NewEmail(cfg config.EmailConfig, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	return &Email{cfg: cfg, send: smtp.SendMail, logger: logger, now: time.Now}
}

type reportData struct {
	Stats     domain.RunStats
	Threats   []domain.DomainEvaluation
	Benign    []domain.DomainEvaluation
	Timestamp string
}

// EmitSummary renders and sends the HTML report. Send failures are logged,
// not propagated; email is a best-effort channel.
func (e *Email) EmitSummary(evaluations []domain.DomainEvaluation, stats domain.RunStats) {
	var benign []domain.DomainEvaluation
	for _, ev := range evaluations {
		if ev.ThreatLevel == domain.ThreatBenign {
			benign = append(benign, ev)
		}
	}
	threats := nonBenign(evaluations)

	var body bytes.Buffer
	if err := reportTmpl.Execute(&body, reportData{
		Stats:     stats,
		Threats:   threats,
		Benign:    benign,
		Timestamp: e.now().UTC().Format("2006-01-02 15:04 UTC"),
	}); err != nil {
		e.logger.Error("render email report", slog.String("error", err.Error()))
		return
	}

	subject := fmt.Sprintf("DNS Threat Report: %d malicious, %d suspicious",
		stats.MaliciousCount, stats.SuspiciousCount)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.Sender)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.cfg.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	if err := e.send(addr, nil, e.cfg.Sender, e.cfg.Recipients, msg.Bytes()); err != nil {
		e.logger.Error("send email report",
			slog.String("addr", addr),
			slog.String("error", err.Error()))
		return
	}
	e.logger.Info("email report sent",
		slog.Int("recipients", len(e.cfg.Recipients)),
		slog.Int("threats", len(threats)))
}

// EmitAlert is a no-op; alerts are part of the summary email.
func (e *Email) EmitAlert(domain.DomainEvaluation) {}
