package payload

import (
	"log/slog"
	"regexp"

	"github.com/apprendo/apprendo/pkg/debug"
	"github.com/apprendo/apprendo/pkg/observability"
)

// Category names a threat signature family.
type Category string

const (
	CategorySQLInjection  Category = "SQL_INJECTION"
	CategoryXSS           Category = "XSS"
	CategoryPathTraversal Category = "PATH_TRAVERSAL"
)

// Rule pairs one signature pattern with its family. SanitizedOnly
// rules match bare tokens that occur in any quoted text and are only
// meaningful after sanitization has stripped legitimate quoting.
type Rule struct {
	Pattern       *regexp.Regexp
	Category      Category
	SanitizedOnly bool
}

// DefaultRules returns the standard signature set. Signature matching
// is a best-effort heuristic, not a complete injection defense; the
// parameterized store queries are the real barrier.
func DefaultRules() []Rule {
	sql := []string{
		`(?i)\bunion\b.*\bselect\b`,
		`(?i)\bdrop\b.*\btable\b`,
		`(?i)\bdelete\b.*\bfrom\b`,
		`(?i)\binsert\b.*\binto\b`,
		`(?i)\bupdate\b.*\bset\b`,
		`(?i)\b(exec|execute)\b`,
		`(?i)\bor\b.*=.*\bor\b`,
		`(?i)\band\b.*=.*\band\b`,
	}
	// Quote and comment tokens appear in ordinary prose ("D'Angelo"),
	// so this rule only applies to sanitized values, where the quote
	// stripping has already removed the legitimate occurrences.
	sqlTokens := `['";]|--|/\*|\*/`
	xss := []string{
		`(?is)<script\b.*?</script>`,
		`(?is)<iframe\b.*?</iframe>`,
		`(?i)javascript:`,
		`(?i)on\w+\s*=`,
		`(?i)<img[^>]+src[^>]*>`,
		`(?is)<object\b.*?</object>`,
		`(?is)<embed\b.*?</embed>`,
	}
	traversal := []string{
		`\.\.`,
		`(?i)%2e%2e`,
		`(?i)%2f`,
		`(?i)%5c`,
	}

	var rules []Rule
	for _, p := range sql {
		rules = append(rules, Rule{Pattern: regexp.MustCompile(p), Category: CategorySQLInjection})
	}
	rules = append(rules, Rule{
		Pattern:       regexp.MustCompile(sqlTokens),
		Category:      CategorySQLInjection,
		SanitizedOnly: true,
	})
	for _, p := range xss {
		rules = append(rules, Rule{Pattern: regexp.MustCompile(p), Category: CategoryXSS})
	}
	for _, p := range traversal {
		rules = append(rules, Rule{Pattern: regexp.MustCompile(p), Category: CategoryPathTraversal})
	}
	return rules
}

// ThreatError reports a signature match. Sample carries at most 100
// characters of the offending value for the audit log; the error text
// deliberately reveals neither.
type ThreatError struct {
	Category Category
	Sample   string
}

func (e *ThreatError) Error() string {
	return "unsafe input detected"
}

// Screener evaluates the rule set against every string in a payload.
type Screener struct {
	rules  []Rule
	logger *slog.Logger
}

// NewScreener creates a Screener. Nil rules means DefaultRules.
func NewScreener(rules []Rule, logger *slog.Logger) *Screener {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Screener{rules: rules, logger: logger}
}

// Screen walks the value and returns a ThreatError on the first
// signature match. The match aborts immediately; there is no value in
// enumerating further hits on input that is already condemned.
func (s *Screener) Screen(value any) error {
	return s.screen(value, true)
}

// ScreenRaw walks a value that has not been sanitized yet, so an
// attacker cannot rely on the sanitizer to neutralize a signature
// before screening sees it. SanitizedOnly rules are skipped here.
func (s *Screener) ScreenRaw(value any) error {
	return s.screen(value, false)
}

func (s *Screener) screen(value any, sanitized bool) error {
	switch v := value.(type) {
	case string:
		return s.screenString(v, sanitized)
	case []any:
		for _, item := range v {
			if err := s.screen(item, sanitized); err != nil {
				return err
			}
		}
	case map[string]any:
		for key, item := range v {
			if err := s.screenString(key, sanitized); err != nil {
				return err
			}
			if err := s.screen(item, sanitized); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Screener) screenString(v string, sanitized bool) error {
	for _, rule := range s.rules {
		if rule.SanitizedOnly && !sanitized {
			continue
		}
		if rule.Pattern.MatchString(v) {
			debug.Trace("payload", "signature matched", "pattern", rule.Pattern.String())
			sample := v
			if runes := []rune(sample); len(runes) > 100 {
				sample = string(runes[:100])
			}
			s.logger.Error("threat signature matched",
				"type", "SECURITY_ALERT",
				"category", string(rule.Category),
				"sample", sample,
			)
			observability.ThreatScreenHitsTotal.WithLabelValues(string(rule.Category)).Inc()
			return &ThreatError{Category: rule.Category, Sample: sample}
		}
	}
	return nil
}
