// Package sqlite reads Pi-hole's FTL database directly and keeps the
// evaluation ledger in a separate sqlite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"threatintel/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// queryTypeNames maps FTL's numeric query types to record type names.
var queryTypeNames = map[int]string{
	1: "A", 2: "AAAA", 3: "ANY", 4: "SRV", 5: "SOA",
	6: "PTR", 7: "TXT", 8: "NAPTR", 9: "MX", 10: "DS",
	11: "RRSIG", 12: "DNSKEY", 13: "NS", 14: "OTHER",
	15: "SVCB", 16: "HTTPS",
}

// Options configures the sqlite data source.
type Options struct {
	PiholeDB                 string
	EvalDB                   string
	LookbackHours            int
	PreviousEvaluationsCount int
	EvaluationTTLDays        int
}

// Source implements storage.DataSource against two sqlite files: the FTL
// database (read-only) and this tool's own evaluation ledger.
type Source struct {
	opts   Options
	logger *slog.Logger
}

// New prepares the evaluation ledger schema and returns the source. The
// FTL database is never written or migrated.
func New(opts Options, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{opts: opts, logger: logger}
	if err := s.migrateEvalDB(); err != nil {
		return nil, fmt.Errorf("prepare evaluation db: %w", err)
	}
	return s, nil
}

func (s *Source) migrateEvalDB() error {
	if dir := filepath.Dir(s.opts.EvalDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := s.evalConn()
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func (s *Source) piholeConn() (*sql.DB, error) {
	return sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", s.opts.PiholeDB))
}

func (s *Source) evalConn() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.opts.EvalDB)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// FetchDomainStats aggregates allowed queries from the lookback window,
// one row per domain with distinct clients and query types.
func (s *Source) FetchDomainStats(ctx context.Context) []domain.DomainStats {
	since := time.Now().UTC().Add(-time.Duration(s.opts.LookbackHours) * time.Hour)

	s.logger.Info("querying pihole sqlite",
		slog.String("db", s.opts.PiholeDB),
		slog.Time("since", since))

	db, err := s.piholeConn()
	if err != nil {
		s.logger.Error("pihole db open failed", slog.String("error", err.Error()))
		return nil
	}
	defer db.Close()

	// Status codes 2,3,12,13,14,17 are queries Pi-hole allowed/forwarded.
	rows, err := db.QueryContext(ctx, `
		SELECT domain,
		       COUNT(*) AS query_count,
		       GROUP_CONCAT(DISTINCT client) AS clients,
		       GROUP_CONCAT(DISTINCT type) AS types
		FROM queries
		WHERE timestamp > ?
		  AND status IN (2, 3, 12, 13, 14, 17)
		GROUP BY domain
	`, since.Unix())
	if err != nil {
		s.logger.Error("pihole db query failed", slog.String("error", err.Error()))
		return nil
	}
	defer rows.Close()

	var results []domain.DomainStats
	for rows.Next() {
		var (
			name    string
			count   int
			clients sql.NullString
			types   sql.NullString
		)
		if err := rows.Scan(&name, &count, &clients, &types); err != nil {
			s.logger.Error("pihole row scan failed", slog.String("error", err.Error()))
			return nil
		}
		results = append(results, domain.DomainStats{
			Domain:        name,
			QueryCount:    count,
			UniqueClients: splitConcat(clients.String),
			QueryTypes:    mapQueryTypes(splitConcat(types.String)),
		})
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("pihole rows failed", slog.String("error", err.Error()))
		return nil
	}

	s.logger.Info("pihole sqlite query complete", slog.Int("unique_domains", len(results)))
	return results
}

// FetchPreviousEvaluations returns the newest evaluations for learning
// context.
func (s *Source) FetchPreviousEvaluations(ctx context.Context) []domain.DomainEvaluation {
	db, err := s.evalConn()
	if err != nil {
		s.logger.Error("eval db open failed", slog.String("error", err.Error()))
		return nil
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT domain, threat_level, confidence, reasoning, indicators,
		       evaluated_by, escalated, query_count, unique_clients, evaluated_at
		FROM evaluations
		ORDER BY evaluated_at DESC
		LIMIT ?
	`, s.opts.PreviousEvaluationsCount)
	if err != nil {
		s.logger.Error("fetch previous evaluations failed", slog.String("error", err.Error()))
		return nil
	}
	defer rows.Close()

	var results []domain.DomainEvaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			s.logger.Error("evaluation scan failed", slog.String("error", err.Error()))
			return nil
		}
		results = append(results, ev)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("evaluation rows failed", slog.String("error", err.Error()))
		return nil
	}

	s.logger.Info("loaded previous evaluations", slog.Int("count", len(results)))
	return results
}

// FetchAlreadyEvaluatedDomains returns the distinct domains with an
// evaluation inside the TTL window.
func (s *Source) FetchAlreadyEvaluatedDomains(ctx context.Context) map[string]struct{} {
	since := time.Now().UTC().AddDate(0, 0, -s.opts.EvaluationTTLDays)

	db, err := s.evalConn()
	if err != nil {
		s.logger.Error("eval db open failed", slog.String("error", err.Error()))
		return map[string]struct{}{}
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT domain FROM evaluations WHERE evaluated_at > ?
	`, since.Format(time.RFC3339))
	if err != nil {
		s.logger.Error("fetch already-evaluated failed", slog.String("error", err.Error()))
		return map[string]struct{}{}
	}
	defer rows.Close()

	domains := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.logger.Error("domain scan failed", slog.String("error", err.Error()))
			return map[string]struct{}{}
		}
		domains[name] = struct{}{}
	}

	s.logger.Info("already-evaluated domains", slog.Int("count", len(domains)))
	return domains
}

// StoreEvaluations inserts all evaluations in one transaction. A failed
// insert rolls everything back and reports zero stored.
func (s *Source) StoreEvaluations(ctx context.Context, evaluations []domain.DomainEvaluation) int {
	if len(evaluations) == 0 {
		return 0
	}

	db, err := s.evalConn()
	if err != nil {
		s.logger.Error("eval db open failed", slog.String("error", err.Error()))
		return 0
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("begin tx failed", slog.String("error", err.Error()))
		return 0
	}

	count := 0
	for _, ev := range evaluations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations
				(domain, threat_level, confidence, reasoning, indicators,
				 evaluated_by, escalated, query_count, unique_clients, evaluated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			ev.Domain,
			string(ev.ThreatLevel),
			ev.Confidence,
			ev.Reasoning,
			strings.Join(ev.Indicators, ","),
			ev.EvaluatedBy,
			boolToInt(ev.Escalated),
			ev.QueryCount,
			strings.Join(ev.UniqueClients, ","),
			ev.EvaluatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			s.logger.Error("sqlite store failed", slog.String("error", err.Error()))
			tx.Rollback()
			return 0
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite commit failed", slog.String("error", err.Error()))
		return 0
	}

	s.logger.Info("sqlite store complete", slog.Int("count", count))
	return count
}

func scanEvaluation(rows *sql.Rows) (domain.DomainEvaluation, error) {
	var (
		ev          domain.DomainEvaluation
		level       string
		indicators  string
		escalated   int
		clients     string
		evaluatedAt string
	)
	err := rows.Scan(&ev.Domain, &level, &ev.Confidence, &ev.Reasoning, &indicators,
		&ev.EvaluatedBy, &escalated, &ev.QueryCount, &clients, &evaluatedAt)
	if err != nil {
		return ev, err
	}
	ev.ThreatLevel = domain.ThreatLevel(level)
	ev.Indicators = splitConcat(indicators)
	ev.Escalated = escalated != 0
	ev.UniqueClients = splitConcat(clients)
	if ts, err := time.Parse(time.RFC3339, evaluatedAt); err == nil {
		ev.EvaluatedAt = ts
	}
	return ev, nil
}

func splitConcat(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func mapQueryTypes(ids []string) []string {
	types := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			types = append(types, id)
			continue
		}
		if name, ok := queryTypeNames[n]; ok {
			types = append(types, name)
		} else {
			types = append(types, "TYPE"+id)
		}
	}
	return types
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
