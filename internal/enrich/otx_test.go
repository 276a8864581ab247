package enrich

import (
	"context"
	"testing"

	"threatintel/internal/testutil"
)

func TestOTXLookup(t *testing.T) {
	r := testutil.NewRecorder(t, "otx_lookup")

	c := &OTXClient{
		baseURL:    otxBaseURL,
		httpClient: testutil.HTTPClient(r),
	}

	result, err := c.Lookup(context.Background(), "evil-domain.biz")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if result.PulseCount != 3 {
		t.Errorf("pulse count = %d, want 3", result.PulseCount)
	}
	if result.MalwareCount != 2 {
		t.Errorf("malware count = %d, want 2", result.MalwareCount)
	}

	// First 3 tags of each pulse, deduplicated: the fourth tag of the
	// first pulse and the repeat of "phishing" are dropped.
	want := []string{"phishing", "credential-theft", "smishing", "malware", "loader"}
	if len(result.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", result.Tags, want)
	}
	for i, tag := range want {
		if result.Tags[i] != tag {
			t.Errorf("tag[%d] = %q, want %q", i, result.Tags[i], tag)
		}
	}
}
