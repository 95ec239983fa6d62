// Package filter implements the rule predicate evaluator.
package filter

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"dealwatch/internal/model"
)

var folder = cases.Fold()

// fold maps s to its case-folded form, so "Straße" and "STRASSE" compare equal.
func fold(s string) string {
	return folder.String(s)
}

// Matches checks whether a deal passes the title, author, price and category
// constraints of a rule. Popularity is evaluated separately with MatchPopularity.
// A constraint on a field the deal does not carry never matches.
func Matches(d model.Deal, r model.Rule) bool {
	return MatchTitle(d.Title, r) &&
		MatchAuthor(d.Author, r) &&
		MatchPrice(d.Price, r) &&
		MatchCategory(d.Category, r)
}

// MatchTitle applies title_contains, title_excludes and title_regex.
func MatchTitle(title string, r model.Rule) bool {
	if len(r.TitleContains) == 0 && len(r.TitleExcludes) == 0 && len(r.TitleRegex) == 0 {
		return true
	}
	if title == "" {
		return false
	}
	text := fold(title)

	for _, term := range r.TitleContains {
		if !strings.Contains(text, fold(term)) {
			return false
		}
	}
	for _, term := range r.TitleExcludes {
		if strings.Contains(text, fold(term)) {
			return false
		}
	}
	for _, pattern := range r.TitleRegex {
		re, err := compile(pattern)
		if err != nil {
			return false
		}
		if !re.MatchString(title) {
			return false
		}
	}
	return true
}

// MatchAuthor applies author and author_excludes.
func MatchAuthor(author string, r model.Rule) bool {
	if r.Author == "" && len(r.AuthorExcludes) == 0 {
		return true
	}
	if author == "" {
		return false
	}
	name := fold(author)
	if r.Author != "" && name != fold(r.Author) {
		return false
	}
	for _, excluded := range r.AuthorExcludes {
		if name == fold(excluded) {
			return false
		}
	}
	return true
}

// MatchPrice applies max_price.
func MatchPrice(price *float64, r model.Rule) bool {
	if r.MaxPrice == nil {
		return true
	}
	if price == nil {
		return false
	}
	return *price <= *r.MaxPrice
}

// MatchCategory applies category. A single value and a list behave the same:
// the deal category must equal one of them.
func MatchCategory(category string, r model.Rule) bool {
	if len(r.Category) == 0 {
		return true
	}
	if category == "" {
		return false
	}
	folded := fold(category)
	for _, c := range r.Category {
		if folded == fold(c) {
			return true
		}
	}
	return false
}

// MatchPopularity reports whether value reaches threshold. A nil threshold
// always matches.
func MatchPopularity(value float64, threshold *float64) bool {
	if threshold == nil {
		return true
	}
	return value >= *threshold
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	if _, err := compile(pattern); err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// Fingerprint returns a stable hash of the full rule definition. Field order
// and the order of list members do not affect the result.
func Fingerprint(r model.Rule) string {
	fields := []string{
		"label=" + r.Label,
		"title_contains=" + canonicalList(r.TitleContains),
		"title_excludes=" + canonicalList(r.TitleExcludes),
		"title_regex=" + canonicalList(r.TitleRegex),
		"author=" + r.Author,
		"author_excludes=" + canonicalList(r.AuthorExcludes),
		"max_price=" + canonicalFloat(r.MaxPrice),
		"category=" + canonicalList(r.Category),
		"min_popularity=" + canonicalFloat(r.MinPopularity),
		"window_minutes=" + canonicalInt(r.WindowMinutes),
	}
	slices.Sort(fields)

	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}

func canonicalList(values []string) string {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func canonicalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func canonicalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
