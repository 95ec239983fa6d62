package diagnose

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"dealwatch/internal/model"
	"dealwatch/internal/source"
)

func ptr[T any](v T) *T { return &v }

type fakeFetcher map[string]model.Deal

func (f fakeFetcher) FetchOne(_ context.Context, url string) (model.Deal, error) {
	d, ok := f[url]
	if !ok {
		return model.Deal{}, source.ErrGone
	}
	return d, nil
}

func TestEvaluate(t *testing.T) {
	d := model.Deal{
		Title:       "Sony PlayStation 5 Slim",
		Author:      "dealhunter",
		Price:       ptr(449.0),
		Category:    "Gaming",
		Temperature: 120,
	}

	tests := []struct {
		name string
		rule model.Rule
		want []FieldResult
	}{
		{name: "no constraints", rule: model.Rule{Label: "all"}},
		{
			name: "every group",
			rule: model.Rule{
				TitleContains: []string{"ps5"},
				Author:        "DealHunter",
				MaxPrice:      ptr(399.0),
				Category:      []string{"Gaming", "Tech"},
				MinPopularity: ptr(100.0),
			},
			want: []FieldResult{
				{Field: "title", Match: false, Value: "Sony PlayStation 5 Slim"},
				{Field: "author", Match: true, Value: "dealhunter"},
				{Field: "price", Match: false, Value: "449.00"},
				{Field: "category", Match: true, Value: "Gaming"},
				{Field: "temperature", Match: true, Value: "120"},
			},
		},
		{
			name: "excludes only",
			rule: model.Rule{TitleExcludes: []string{"xbox"}, AuthorExcludes: []string{"spammer"}},
			want: []FieldResult{
				{Field: "title", Match: true, Value: "Sony PlayStation 5 Slim"},
				{Field: "author", Match: true, Value: "dealhunter"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Evaluate(tt.rule, d)); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	url := "https://deals.example.com/deals/1"
	fetcher := fakeFetcher{url: {URL: url, Title: "LEGO Technic", Temperature: 40}}
	rules := []model.Rule{
		{Label: "skipped", TitleContains: []string{"lego"}},
		{Label: "Lego", TitleContains: []string{"lego"}, MinPopularity: ptr(50.0), TestURL: url},
		{TitleContains: []string{"technic"}, TestURL: url},
	}

	var out bytes.Buffer
	checked, err := Run(context.Background(), fetcher, rules, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if checked != 2 {
		t.Errorf("expected 2 rules checked, got %d", checked)
	}

	want := strings.Join([]string{
		"Lego " + url,
		`  title        match  "LEGO Technic"`,
		`  temperature  no match  "40"`,
		"  rule does not match",
		"rule 3 " + url,
		`  title        match  "LEGO Technic"`,
		"  rule matches",
		"",
	}, "\n")
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFetchError(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	rules := []model.Rule{{Label: "gone", TestURL: "https://deals.example.com/deals/404"}}
	var out bytes.Buffer
	_, err := Run(context.Background(), fakeFetcher{}, rules, &out)
	if !errors.Is(err, source.ErrGone) {
		t.Fatalf("expected ErrGone, got %v", err)
	}
}

func TestRunWithoutTestURLs(t *testing.T) {
	var out bytes.Buffer
	checked, err := Run(context.Background(), fakeFetcher{}, []model.Rule{{Label: "x"}}, &out)
	if err != nil || checked != 0 {
		t.Fatalf("expected 0 checked and no error, got %d, %v", checked, err)
	}
	if !strings.Contains(out.String(), "no rule has a test url") {
		t.Errorf("unexpected output: %q", out.String())
	}
}
