package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const otxBaseURL = "https://otx.alienvault.com"

// OTXResult summarizes community threat-pulse data for a domain. Zero
// counts mean the community has no reports, which is itself a signal;
// they are not "unknown".
type OTXResult struct {
	PulseCount   int
	MalwareCount int
	Tags         []string
}

// OTXClient fetches the AlienVault OTX general indicator endpoint.
type OTXClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOTXClient builds a client with an instrumented transport.
func NewOTXClient() *OTXClient {
	return &OTXClient{
		baseURL: otxBaseURL,
		httpClient: &http.Client{
			Timeout:   httpTransportTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type otxResponse struct {
	PulseInfo struct {
		Count  int `json:"count"`
		Pulses []struct {
			Tags []string `json:"tags"`
		} `json:"pulses"`
	} `json:"pulse_info"`
	Malware struct {
		Data []json.RawMessage `json:"data"`
	} `json:"malware"`
}

// Lookup fetches pulse and malware-sample counts plus a deduplicated tag
// sample: at most the first 3 tags from each of the first 5 pulses,
// capped at 10 tags total.
func (c *OTXClient) Lookup(ctx context.Context, name string) (OTXResult, error) {
	var result OTXResult

	ctx, cancel := context.WithTimeout(ctx, httpLookupBudget)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/indicators/domain/%s/general", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("otx status %d for %s", resp.StatusCode, name)
	}

	var data otxResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return result, err
	}

	result.PulseCount = data.PulseInfo.Count
	result.MalwareCount = len(data.Malware.Data)

	seen := make(map[string]struct{})
	pulses := data.PulseInfo.Pulses
	if len(pulses) > 5 {
		pulses = pulses[:5]
	}
	for _, pulse := range pulses {
		tags := pulse.Tags
		if len(tags) > 3 {
			tags = tags[:3]
		}
		for _, tag := range tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			result.Tags = append(result.Tags, tag)
			if len(result.Tags) >= 10 {
				return result, nil
			}
		}
	}

	return result, nil
}
