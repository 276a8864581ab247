package enrich

import (
	"context"
	"errors"
	"testing"

	"threatintel/internal/domain"
)

// fakeResolver answers A lookups from a fixed table; names absent from the
// table resolve to nothing. A non-nil err fails every lookup.
type fakeResolver struct {
	answers map[string][]string
	err     error
}

func (f *fakeResolver) LookupA(_ context.Context, name string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[name], nil
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]string, error) {
	return f.LookupA(context.Background(), name)
}

func (f *fakeResolver) LookupNS(_ context.Context, name string) ([]string, error) {
	return f.LookupA(context.Background(), name)
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	return f.LookupA(context.Background(), name)
}

func TestCheckPair(t *testing.T) {
	name := "example.com"
	answer := []string{"93.184.216.34"}

	tests := []struct {
		desc       string
		filtered   Resolver
		unfiltered Resolver
		sinkhole   string
		want       domain.Verdict
	}{
		{
			desc:       "filtered empty, unfiltered answers: blocked",
			filtered:   &fakeResolver{},
			unfiltered: &fakeResolver{answers: map[string][]string{name: answer}},
			want:       domain.VerdictBlocked,
		},
		{
			desc:       "both answer: clean",
			filtered:   &fakeResolver{answers: map[string][]string{name: answer}},
			unfiltered: &fakeResolver{answers: map[string][]string{name: answer}},
			want:       domain.VerdictClean,
		},
		{
			desc:       "both empty: clean",
			filtered:   &fakeResolver{},
			unfiltered: &fakeResolver{},
			want:       domain.VerdictClean,
		},
		{
			desc:       "filtered resolver errors: unknown",
			filtered:   &fakeResolver{err: errors.New("timeout")},
			unfiltered: &fakeResolver{answers: map[string][]string{name: answer}},
			want:       domain.VerdictUnknown,
		},
		{
			desc:       "unfiltered resolver errors: unknown",
			filtered:   &fakeResolver{},
			unfiltered: &fakeResolver{err: errors.New("timeout")},
			want:       domain.VerdictUnknown,
		},
		{
			desc:       "sinkhole answer from filtered: blocked",
			filtered:   &fakeResolver{answers: map[string][]string{name: {"0.0.0.0"}}},
			unfiltered: &fakeResolver{answers: map[string][]string{name: answer}},
			sinkhole:   "0.0.0.0",
			want:       domain.VerdictBlocked,
		},
		{
			desc:       "sinkhole answer without sinkhole detection: clean",
			filtered:   &fakeResolver{answers: map[string][]string{name: {"0.0.0.0"}}},
			unfiltered: &fakeResolver{answers: map[string][]string{name: answer}},
			want:       domain.VerdictClean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := checkPair(context.Background(), tt.filtered, tt.unfiltered, name, tt.sinkhole)
			if got != tt.want {
				t.Errorf("checkPair() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpamhausCategory(t *testing.T) {
	tests := []struct {
		answers []string
		want    string
	}{
		{nil, ""},
		{[]string{"127.0.1.5"}, "malware"},
		{[]string{"127.0.1.4"}, "phishing"},
		{[]string{"127.0.1.106"}, "abused_botnet_cc"},
		{[]string{"10.0.0.1"}, ""},
		{[]string{"10.0.0.1", "127.0.1.2"}, "spam"},
	}
	for _, tt := range tests {
		if got := spamhausCategory(tt.answers); got != tt.want {
			t.Errorf("spamhausCategory(%v) = %q, want %q", tt.answers, got, tt.want)
		}
	}
}

func TestSURBLCategory(t *testing.T) {
	tests := []struct {
		answers []string
		want    string
	}{
		{nil, ""},
		{[]string{"127.0.0.8"}, "phishing"},
		{[]string{"127.0.0.16"}, "malware"},
		{[]string{"127.0.0.24"}, "phishing, malware"},
		{[]string{"127.0.0.192"}, "abuse, cracked"},
		{[]string{"not-an-ip"}, ""},
		{[]string{"127.0.0.bad"}, ""},
	}
	for _, tt := range tests {
		if got := surblCategory(tt.answers); got != tt.want {
			t.Errorf("surblCategory(%v) = %q, want %q", tt.answers, got, tt.want)
		}
	}
}
