package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dealwatch/internal/filter"
	"dealwatch/internal/model"
)

// ErrNoRules is returned when the rule file defines no rules.
var ErrNoRules = errors.New("rule file defines no rules")

// Defaults for the rule file options.
const (
	DefaultRequestDelay = 500 * time.Millisecond
	DefaultMaxPages     = 50
)

// Options are the process-wide settings stored next to the rules.
type Options struct {
	RequestDelay     time.Duration
	NotifyOnError    bool
	LogNotifications bool
	MaxPages         int
}

// RuleSet is the parsed rule file. Rules keep their file order.
type RuleSet struct {
	Options Options
	Rules   []model.Rule
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var s []string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = s
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

type ruleFile struct {
	Options struct {
		RequestDelayMs   *int  `yaml:"request_delay_ms"`
		NotifyOnError    *bool `yaml:"notify_on_error"`
		LogNotifications *bool `yaml:"log_notifications"`
		MaxPages         *int  `yaml:"max_pages"`
	} `yaml:"options"`
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Label          string     `yaml:"label"`
	TitleContains  StringList `yaml:"title_contains"`
	TitleExcludes  StringList `yaml:"title_excludes"`
	TitleRegex     StringList `yaml:"title_regex"`
	Author         string     `yaml:"author"`
	AuthorExcludes StringList `yaml:"author_excludes"`
	MaxPrice       *float64   `yaml:"max_price"`
	Category       StringList `yaml:"category"`
	MinPopularity  *float64   `yaml:"min_popularity"`
	WindowMinutes  *int       `yaml:"popularity_window_minutes"`
	Test           string     `yaml:"test"`
}

// LoadRules reads and validates the rule file at path.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a rule file.
func ParseRules(data []byte) (*RuleSet, error) {
	var f ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	set := &RuleSet{
		Options: Options{
			RequestDelay:     DefaultRequestDelay,
			NotifyOnError:    true,
			LogNotifications: true,
			MaxPages:         DefaultMaxPages,
		},
	}
	if v := f.Options.RequestDelayMs; v != nil {
		if *v < 0 {
			return nil, fmt.Errorf("request_delay_ms must be non-negative")
		}
		set.Options.RequestDelay = time.Duration(*v) * time.Millisecond
	}
	if v := f.Options.NotifyOnError; v != nil {
		set.Options.NotifyOnError = *v
	}
	if v := f.Options.LogNotifications; v != nil {
		set.Options.LogNotifications = *v
	}
	if v := f.Options.MaxPages; v != nil {
		if *v < 1 {
			return nil, fmt.Errorf("max_pages must be at least 1")
		}
		set.Options.MaxPages = *v
	}

	if len(f.Rules) == 0 {
		return nil, ErrNoRules
	}
	for i, e := range f.Rules {
		r, err := e.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, e.Label, err)
		}
		set.Rules = append(set.Rules, r)
	}
	return set, nil
}

func (e ruleEntry) toRule() (model.Rule, error) {
	for _, p := range e.TitleRegex {
		if err := filter.ValidateRegex(p); err != nil {
			return model.Rule{}, err
		}
	}
	if e.MaxPrice != nil && *e.MaxPrice < 0 {
		return model.Rule{}, fmt.Errorf("max_price must be non-negative")
	}
	window := e.WindowMinutes
	if window != nil {
		if *window < 0 {
			return model.Rule{}, fmt.Errorf("popularity_window_minutes must be non-negative")
		}
		if *window == 0 {
			window = nil
		}
	}

	return model.Rule{
		Label:          e.Label,
		TitleContains:  e.TitleContains,
		TitleExcludes:  e.TitleExcludes,
		TitleRegex:     e.TitleRegex,
		Author:         e.Author,
		AuthorExcludes: e.AuthorExcludes,
		MaxPrice:       e.MaxPrice,
		Category:       e.Category,
		MinPopularity:  e.MinPopularity,
		WindowMinutes:  window,
		TestURL:        e.Test,
	}, nil
}
