// Package tagging derives metric tags from an ordered list of regex rules.
//
// Rules are evaluated in file order. Every rule whose pattern matches a prefix
// of the metric key contributes its tags; when two matching rules set the same
// tag the later one wins. Tags given explicitly on the command line are merged
// last and override anything a rule produced.
package tagging

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
)

// Rule is a single tagging rule as it appears in the config file.
type Rule struct {
	// Regex is matched against the start of the metric key
	Regex string `yaml:"regex"`

	// Tags are applied to every key the rule matches
	Tags map[string]string `yaml:"tags"`
}

// RuleCompileError reports a rule whose pattern is not a valid regular expression.
type RuleCompileError struct {
	Index   int
	Pattern string
	Err     error
}

func (e *RuleCompileError) Error() string {
	return fmt.Sprintf("tagging: rule %d: invalid regex %q: %v", e.Index, e.Pattern, e.Err)
}

func (e *RuleCompileError) Unwrap() error {
	return e.Err
}

// Is makes every RuleCompileError match ErrRuleCompilation.
func (e *RuleCompileError) Is(target error) bool {
	return target == internalerrors.ErrRuleCompilation
}

type compiledRule struct {
	re   *regexp2.Regexp
	tags map[string]string
}

// matchTimeout bounds a single rule match. Backtracking patterns can
// otherwise run for a very long time on a hostile key.
const matchTimeout = time.Second

func compilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// Engine holds compiled rules, ready to be applied to many keys.
type Engine struct {
	rules []compiledRule
}

// Compile compiles rules in order. The first invalid pattern aborts compilation.
// Patterns use Perl/Python syntax, so lookarounds and backreferences work.
func Compile(rules []Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		// the bare pattern is checked first so "a)(b" cannot slip through the wrapper
		if _, err := compilePattern(r.Regex); err != nil {
			return nil, &RuleCompileError{Index: i, Pattern: r.Regex, Err: err}
		}
		re, err := compilePattern("^(?:" + r.Regex + ")")
		if err != nil {
			return nil, &RuleCompileError{Index: i, Pattern: r.Regex, Err: err}
		}
		compiled = append(compiled, compiledRule{re: re, tags: r.Tags})
	}
	return &Engine{rules: compiled}, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Tags computes the tag set for key. A nil Engine applies no rules.
// The returned map is always fresh and never nil. An error is returned only
// when a match runs out of time.
func (e *Engine) Tags(key string, explicit map[string]string) (map[string]string, error) {
	tags := make(map[string]string)
	if e != nil {
		for i, r := range e.rules {
			matched, err := r.re.MatchString(key)
			if err != nil {
				return nil, fmt.Errorf("tagging: rule %d on key %q: %w", i, key, err)
			}
			if !matched {
				continue
			}
			for name, value := range r.tags {
				tags[name] = value
			}
		}
	}
	for name, value := range explicit {
		tags[name] = value
	}
	return tags, nil
}

// ComputeTags is the one-shot form of Compile followed by Engine.Tags.
// With autotags disabled the rules are neither compiled nor evaluated.
// An empty result means no tag update should be sent for key.
func ComputeTags(key string, rules []Rule, explicit map[string]string, autotags bool) (map[string]string, error) {
	var engine *Engine
	if autotags {
		var err error
		engine, err = Compile(rules)
		if err != nil {
			return nil, err
		}
	}
	return engine.Tags(key, explicit)
}
