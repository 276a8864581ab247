// Package opensearch reads Pi-hole query logs from OpenSearch indices and
// stores evaluations in a dedicated index. This is the SIEM-mode backend.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"threatintel/internal/domain"
)

// Options configures the opensearch data source.
type Options struct {
	Host                     string
	Port                     int
	PiholeIndexPrefix        string
	EvaluationsIndex         string
	LookbackHours            int
	PreviousEvaluationsCount int
	EvaluationTTLDays        int
}

// Source implements storage.DataSource against an OpenSearch cluster.
type Source struct {
	client *opensearch.Client
	opts   Options
	logger *slog.Logger
}

// New builds the client. Connection errors surface on first use, matching
// the lazy behavior of the underlying transport.
func New(opts Options, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{fmt.Sprintf("http://%s:%d", opts.Host, opts.Port)},
		Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return &Source{client: client, opts: opts, logger: logger}, nil
}

type aggBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
	Clients  struct {
		Buckets []aggBucket `json:"buckets"`
	} `json:"clients"`
	QueryTypes struct {
		Buckets []aggBucket `json:"buckets"`
	} `json:"query_types"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Domains struct {
			Buckets []aggBucket `json:"buckets"`
		} `json:"domains"`
	} `json:"aggregations"`
}

// FetchDomainStats runs a terms aggregation over the pihole indices so raw
// documents never leave the cluster.
func (s *Source) FetchDomainStats(ctx context.Context) []domain.DomainStats {
	now := time.Now().UTC()
	since := now.Add(-time.Duration(s.opts.LookbackHours) * time.Hour)
	indexPattern := s.opts.PiholeIndexPrefix + "-*"

	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"range": map[string]interface{}{
						"@timestamp": map[string]interface{}{
							"gte": since.Format(time.RFC3339),
							"lte": now.Format(time.RFC3339),
						},
					}},
					map[string]interface{}{"term": map[string]interface{}{
						"action.keyword": "query",
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"domains": map[string]interface{}{
				"terms": map[string]interface{}{"field": "domain.keyword", "size": 10000},
				"aggs": map[string]interface{}{
					"clients":     map[string]interface{}{"terms": map[string]interface{}{"field": "client_or_target.keyword", "size": 100}},
					"query_types": map[string]interface{}{"terms": map[string]interface{}{"field": "query_type.keyword", "size": 20}},
				},
			},
		},
	}

	s.logger.Info("querying opensearch",
		slog.String("index", indexPattern),
		slog.Time("since", since))

	var parsed searchResponse
	if !s.search(ctx, indexPattern, query, &parsed) {
		return nil
	}

	var results []domain.DomainStats
	for _, bucket := range parsed.Aggregations.Domains.Buckets {
		clients := make([]string, 0, len(bucket.Clients.Buckets))
		for _, c := range bucket.Clients.Buckets {
			clients = append(clients, c.Key)
		}
		qtypes := make([]string, 0, len(bucket.QueryTypes.Buckets))
		for _, q := range bucket.QueryTypes.Buckets {
			qtypes = append(qtypes, q.Key)
		}
		results = append(results, domain.DomainStats{
			Domain:        bucket.Key,
			QueryCount:    bucket.DocCount,
			UniqueClients: clients,
			QueryTypes:    qtypes,
		})
	}

	s.logger.Info("opensearch query complete", slog.Int("unique_domains", len(results)))
	return results
}

// FetchPreviousEvaluations returns the newest evaluations from the ledger
// index.
func (s *Source) FetchPreviousEvaluations(ctx context.Context) []domain.DomainEvaluation {
	if !s.indexExists(ctx, s.opts.EvaluationsIndex) {
		return nil
	}

	query := map[string]interface{}{
		"size":  s.opts.PreviousEvaluationsCount,
		"sort":  []interface{}{map[string]interface{}{"evaluated_at": map[string]interface{}{"order": "desc"}}},
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}

	var parsed searchResponse
	if !s.search(ctx, s.opts.EvaluationsIndex, query, &parsed) {
		return nil
	}

	var results []domain.DomainEvaluation
	for _, hit := range parsed.Hits.Hits {
		var ev domain.DomainEvaluation
		if err := json.Unmarshal(hit.Source, &ev); err != nil {
			s.logger.Error("evaluation decode failed", slog.String("error", err.Error()))
			continue
		}
		results = append(results, ev)
	}

	s.logger.Info("loaded previous evaluations", slog.Int("count", len(results)))
	return results
}

// FetchAlreadyEvaluatedDomains aggregates distinct domains evaluated inside
// the TTL window.
func (s *Source) FetchAlreadyEvaluatedDomains(ctx context.Context) map[string]struct{} {
	domains := make(map[string]struct{})
	if !s.indexExists(ctx, s.opts.EvaluationsIndex) {
		return domains
	}

	since := time.Now().UTC().AddDate(0, 0, -s.opts.EvaluationTTLDays)
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"evaluated_at": map[string]interface{}{"gte": since.Format(time.RFC3339)},
			},
		},
		"aggs": map[string]interface{}{
			"domains": map[string]interface{}{
				"terms": map[string]interface{}{"field": "domain", "size": 50000},
			},
		},
	}

	var parsed searchResponse
	if !s.search(ctx, s.opts.EvaluationsIndex, query, &parsed) {
		return domains
	}

	for _, bucket := range parsed.Aggregations.Domains.Buckets {
		domains[bucket.Key] = struct{}{}
	}

	s.logger.Info("already-evaluated domains", slog.Int("count", len(domains)))
	return domains
}

// StoreEvaluations bulk-indexes evaluations and counts per-item successes,
// so a partial bulk failure reports the partial count.
func (s *Source) StoreEvaluations(ctx context.Context, evaluations []domain.DomainEvaluation) int {
	if len(evaluations) == 0 {
		return 0
	}

	if err := s.ensureEvaluationsIndex(ctx); err != nil {
		s.logger.Error("ensure evaluations index failed", slog.String("error", err.Error()))
		return 0
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range evaluations {
		if err := enc.Encode(map[string]interface{}{
			"index": map[string]interface{}{"_index": s.opts.EvaluationsIndex},
		}); err != nil {
			s.logger.Error("bulk action encode failed", slog.String("error", err.Error()))
			return 0
		}
		if err := enc.Encode(ev); err != nil {
			s.logger.Error("evaluation encode failed", slog.String("error", err.Error()))
			return 0
		}
	}

	res, err := opensearchapi.BulkRequest{Body: &buf}.Do(ctx, s.client)
	if err != nil {
		s.logger.Error("bulk index failed", slog.String("error", err.Error()))
		return 0
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Error("bulk index failed", slog.String("status", res.Status()))
		return 0
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		s.logger.Error("bulk response decode failed", slog.String("error", err.Error()))
		return 0
	}

	success := 0
	for _, item := range bulk.Items {
		if op, ok := item["index"]; ok && op.Status < 300 {
			success++
		}
	}

	if bulk.Errors {
		s.logger.Warn("bulk index partial failure",
			slog.Int("failed", len(bulk.Items)-success),
			slog.Int("succeeded", success))
	} else {
		s.logger.Info("bulk index complete", slog.Int("count", success))
	}
	return success
}

func (s *Source) search(ctx context.Context, index string, query map[string]interface{}, out *searchResponse) bool {
	body, err := json.Marshal(query)
	if err != nil {
		s.logger.Error("query encode failed", slog.String("error", err.Error()))
		return false
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		s.logger.Error("opensearch query failed", slog.String("error", err.Error()))
		return false
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Error("opensearch query failed", slog.String("status", res.Status()))
		return false
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		s.logger.Error("opensearch response decode failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (s *Source) indexExists(ctx context.Context, index string) bool {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, s.client)
	if err != nil {
		s.logger.Error("index exists check failed", slog.String("error", err.Error()))
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}

func (s *Source) ensureEvaluationsIndex(ctx context.Context) error {
	if s.indexExists(ctx, s.opts.EvaluationsIndex) {
		return nil
	}

	mapping := `{
		"settings": {"number_of_shards": 1, "number_of_replicas": 0},
		"mappings": {
			"properties": {
				"domain": {"type": "keyword"},
				"threat_level": {"type": "keyword"},
				"confidence": {"type": "integer"},
				"reasoning": {"type": "text"},
				"indicators": {"type": "keyword"},
				"evaluated_by": {"type": "keyword"},
				"escalated": {"type": "boolean"},
				"query_count": {"type": "integer"},
				"unique_clients": {"type": "keyword"},
				"evaluated_at": {"type": "date"}
			}
		}
	}`

	res, err := opensearchapi.IndicesCreateRequest{
		Index: s.opts.EvaluationsIndex,
		Body:  strings.NewReader(mapping),
	}.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.opts.EvaluationsIndex, res.Status())
	}

	s.logger.Info("created evaluations index", slog.String("index", s.opts.EvaluationsIndex))
	return nil
}
