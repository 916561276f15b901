package manifest_test

import (
	"strings"
	"testing"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
	"github.com/popgate/popgate/internal/manifest"
)

func TestParse_FullManifest(t *testing.T) {
	doc := `
experiences:
  - id: exit-offer
    kind: modal
    priority: 10
    targeting:
      url:
        contains: /products
      trigger:
        name: exit-intent
    frequency:
      max: 1
      per: session
    content:
      headline: Wait, before you go
  - id: scroll-banner
    targeting:
      trigger:
        name: scroll-depth
        threshold: 50
`
	exps, err := manifest.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(exps) != 2 {
		t.Fatalf("expected 2 experiences, got %d", len(exps))
	}

	offer := exps[0]
	if offer.ID != "exit-offer" || offer.Kind != engine.KindModal || offer.Priority != 10 {
		t.Errorf("unexpected experience %+v", offer)
	}
	if offer.Targeting.URL == nil || offer.Targeting.URL.Contains != "/products" {
		t.Errorf("url rule not decoded: %+v", offer.Targeting.URL)
	}
	if offer.Targeting.Trigger == nil || offer.Targeting.Trigger.Name != engine.TriggerExitIntent {
		t.Errorf("trigger rule not decoded: %+v", offer.Targeting.Trigger)
	}
	if offer.Frequency == nil || offer.Frequency.Max != 1 || offer.Frequency.Per != frequency.WindowSession {
		t.Errorf("frequency not decoded: %+v", offer.Frequency)
	}
	if offer.Content["headline"] != "Wait, before you go" {
		t.Errorf("content not decoded: %v", offer.Content)
	}

	banner := exps[1]
	if banner.Kind != engine.KindBanner {
		t.Errorf("kind must default to banner, got %v", banner.Kind)
	}
	if banner.Targeting.Trigger.Threshold == nil || *banner.Targeting.Trigger.Threshold != 50 {
		t.Errorf("threshold not decoded: %+v", banner.Targeting.Trigger)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing id",
			doc: `
experiences:
  - kind: banner
`,
			want: "missing id",
		},
		{
			name: "duplicate id",
			doc: `
experiences:
  - id: a
  - id: a
`,
			want: "duplicate id",
		},
		{
			name: "unknown kind",
			doc: `
experiences:
  - id: a
    kind: popover
`,
			want: "unknown kind",
		},
		{
			name: "frequency max below one",
			doc: `
experiences:
  - id: a
    frequency:
      max: 0
      per: day
`,
			want: "must be at least 1",
		},
		{
			name: "invalid window",
			doc: `
experiences:
  - id: a
    frequency:
      max: 1
      per: month
`,
			want: "invalid frequency window",
		},
		{
			name: "threshold on wrong trigger",
			doc: `
experiences:
  - id: a
    targeting:
      trigger:
        name: exit-intent
        threshold: 50
`,
			want: "threshold only applies",
		},
		{
			name: "trigger missing name",
			doc: `
experiences:
  - id: a
    targeting:
      trigger:
        threshold: 50
`,
			want: "missing name",
		},
		{
			name: "unknown field",
			doc: `
experiences:
  - id: a
    colour: red
`,
			want: "field colour not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manifest.Parse(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := manifest.Load("does-not-exist.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
