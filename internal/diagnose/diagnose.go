// Package diagnose checks rules against the deal named in their test url and
// prints which constraints hold.
package diagnose

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"dealwatch/internal/filter"
	"dealwatch/internal/model"
)

// Fetcher looks up a single deal.
type Fetcher interface {
	FetchOne(ctx context.Context, url string) (model.Deal, error)
}

// FieldResult is the outcome of one constraint group.
type FieldResult struct {
	Field string
	Match bool
	Value string
}

// Evaluate checks every constraint group the rule sets against d. Groups the
// rule leaves unset are not reported.
func Evaluate(r model.Rule, d model.Deal) []FieldResult {
	var out []FieldResult
	if len(r.TitleContains) > 0 || len(r.TitleExcludes) > 0 || len(r.TitleRegex) > 0 {
		out = append(out, FieldResult{Field: "title", Match: filter.MatchTitle(d.Title, r), Value: d.Title})
	}
	if r.Author != "" || len(r.AuthorExcludes) > 0 {
		out = append(out, FieldResult{Field: "author", Match: filter.MatchAuthor(d.Author, r), Value: d.Author})
	}
	if r.MaxPrice != nil {
		value := "none"
		if d.Price != nil {
			value = strconv.FormatFloat(*d.Price, 'f', 2, 64)
		}
		out = append(out, FieldResult{Field: "price", Match: filter.MatchPrice(d.Price, r), Value: value})
	}
	if len(r.Category) > 0 {
		out = append(out, FieldResult{Field: "category", Match: filter.MatchCategory(d.Category, r), Value: d.Category})
	}
	if r.HasPopularity() {
		out = append(out, FieldResult{
			Field: "temperature",
			Match: filter.MatchPopularity(d.Temperature, r.MinPopularity),
			Value: strconv.FormatFloat(d.Temperature, 'f', -1, 64),
		})
	}
	return out
}

// Run fetches the test deal of every rule that has one and writes a report
// to out. It returns the number of rules checked.
func Run(ctx context.Context, f Fetcher, rules []model.Rule, out io.Writer) (int, error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	checked := 0
	for i, r := range rules {
		if r.TestURL == "" {
			continue
		}
		checked++

		label := r.Label
		if label == "" {
			label = "rule " + strconv.Itoa(i+1)
		}
		fmt.Fprintf(out, "%s %s\n", bold(label), cyan(r.TestURL))

		d, err := f.FetchOne(ctx, r.TestURL)
		if err != nil {
			return checked, fmt.Errorf("fetch test deal for %s: %w", label, err)
		}

		results := Evaluate(r, d)
		if len(results) == 0 {
			fmt.Fprintln(out, "  no constraints set")
		}
		for _, res := range results {
			verdict := green("match")
			if !res.Match {
				verdict = red("no match")
			}
			fmt.Fprintf(out, "  %-12s %s  %q\n", res.Field, verdict, res.Value)
		}

		overall := green("rule matches")
		if !filter.Matches(d, r) || !filter.MatchPopularity(d.Temperature, r.MinPopularity) {
			overall = red("rule does not match")
		}
		fmt.Fprintf(out, "  %s\n", overall)
	}

	if checked == 0 {
		fmt.Fprintln(out, "no rule has a test url")
	}
	return checked, nil
}
