package enrich

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"threatintel/internal/testutil"
)

func TestRDAPLookup(t *testing.T) {
	r := testutil.NewRecorder(t, "rdap_lookup")

	c := &RDAPClient{
		baseURL:    rdapBaseURL,
		httpClient: testutil.HTTPClient(r),
		now: func() time.Time {
			return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		},
	}

	result, err := c.Lookup(context.Background(), "example-new.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if result.CreationDate != "2024-01-15" {
		t.Errorf("creation date = %q, want 2024-01-15", result.CreationDate)
	}
	if result.Registrar != "Example Registrar LLC" {
		t.Errorf("registrar = %q, want Example Registrar LLC", result.Registrar)
	}
	if result.AgeDays != 46 {
		t.Errorf("age = %d days, want 46", result.AgeDays)
	}
}

func TestVCardFullName(t *testing.T) {
	tests := []struct {
		desc string
		raw  string
		want string
	}{
		{
			desc: "well-formed jCard",
			raw:  `["vcard",[["version",{},"text","4.0"],["fn",{},"text","Some Registrar"]]]`,
			want: "Some Registrar",
		},
		{desc: "missing fn entry", raw: `["vcard",[["version",{},"text","4.0"]]]`, want: ""},
		{desc: "empty", raw: ``, want: ""},
		{desc: "not a jCard", raw: `{"fn":"nope"}`, want: ""},
		{desc: "truncated fn entry", raw: `["vcard",[["fn",{},"text"]]]`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := vcardFullName(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("vcardFullName(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
