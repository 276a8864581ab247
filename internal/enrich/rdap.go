package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	rdapBaseURL = "https://rdap.org"

	// httpTransportTimeout caps the transport round trip; httpLookupBudget
	// caps the whole sub-lookup including body parsing.
	httpTransportTimeout = 5 * time.Second
	httpLookupBudget     = 8 * time.Second
)

// RDAPResult is what the registry knows about a domain's registration.
// Each field degrades independently; partial success is normal.
type RDAPResult struct {
	// AgeDays is -1 when the creation date is missing or unparseable.
	AgeDays      int
	Registrar    string
	CreationDate string
}

// RDAPClient fetches registration metadata from the rdap.org aggregator.
type RDAPClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewRDAPClient builds a client with an instrumented transport.
func NewRDAPClient() *RDAPClient {
	return &RDAPClient{
		baseURL: rdapBaseURL,
		httpClient: &http.Client{
			Timeout:   httpTransportTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

type rdapResponse struct {
	Events []struct {
		EventAction string `json:"eventAction"`
		EventDate   string `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles      []string        `json:"roles"`
		VCardArray json.RawMessage `json:"vcardArray"`
	} `json:"entities"`
}

// Lookup fetches and parses registration data. Any failure returns an
// all-unknown result and an error for logging; the error never aborts the
// owning enrichment.
func (c *RDAPClient) Lookup(ctx context.Context, name string) (RDAPResult, error) {
	result := RDAPResult{AgeDays: -1}

	ctx, cancel := context.WithTimeout(ctx, httpLookupBudget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain/"+name, nil)
	if err != nil {
		return result, err
	}
	req.Header.Set("Accept", "application/rdap+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("rdap status %d for %s", resp.StatusCode, name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}

	var data rdapResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return result, err
	}

	for _, event := range data.Events {
		if event.EventAction == "registration" && len(event.EventDate) >= 10 {
			result.CreationDate = event.EventDate[:10]
		}
	}

	for _, entity := range data.Entities {
		for _, role := range entity.Roles {
			if role == "registrar" {
				result.Registrar = vcardFullName(entity.VCardArray)
				break
			}
		}
		if result.Registrar != "" {
			break
		}
	}

	if result.CreationDate != "" {
		if created, err := time.Parse("2006-01-02", result.CreationDate); err == nil {
			result.AgeDays = int(c.now().UTC().Sub(created).Hours() / 24)
		}
	}

	return result, nil
}

// vcardFullName digs the "fn" entry out of a jCard array:
// ["vcard", [["fn", {}, "text", "Registrar Name"], ...]].
func vcardFullName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var card []json.RawMessage
	if err := json.Unmarshal(raw, &card); err != nil || len(card) < 2 {
		return ""
	}
	var entries [][]json.RawMessage
	if err := json.Unmarshal(card[1], &entries); err != nil {
		return ""
	}
	for _, entry := range entries {
		if len(entry) < 4 {
			continue
		}
		var field string
		if err := json.Unmarshal(entry[0], &field); err != nil {
			continue
		}
		if strings.EqualFold(field, "fn") {
			var name string
			if err := json.Unmarshal(entry[3], &name); err == nil {
				return name
			}
		}
	}
	return ""
}
