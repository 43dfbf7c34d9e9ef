// Package normalize maps free-text size descriptors to canonical grade labels.
//
// A canonical label is "<weight>kg<grade>", e.g. "4.5kg上" (4.5kg and up).
// Matching is an ordered list of rules; the first rule that recognizes the
// folded text wins.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrUnrecognizedSizeLabel is returned when no rule recognizes a size text.
var ErrUnrecognizedSizeLabel = errors.New("unrecognized size label")

// Rule turns folded size text into a canonical label.
type Rule interface {
	Name() string
	// Apply returns the canonical label and true when the rule recognizes s.
	Apply(s string) (string, bool)
}

// Normalizer evaluates rules in order.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer builds a normalizer from rules. With no rules the default
// rule set is used.
func NewNormalizer(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// WithAliases returns a copy of n with exact-match alias rules evaluated
// before the existing rules. Aliases whose target is not a size label the
// built-in rules recognize are ignored; see ValidateAliases.
func (n *Normalizer) WithAliases(aliases map[string]string) *Normalizer {
	if len(aliases) == 0 {
		return n
	}
	rules := make([]Rule, 0, len(n.rules)+1)
	rules = append(rules, NewAliasRule(aliases))
	rules = append(rules, n.rules...)
	return &Normalizer{rules: rules}
}

// Normalize returns the canonical label for raw.
// Normalizing an already-canonical label returns it unchanged.
func (n *Normalizer) Normalize(raw string) (string, error) {
	folded := Fold(raw)
	if folded == "" {
		return "", fmt.Errorf("%w: empty", ErrUnrecognizedSizeLabel)
	}
	for _, r := range n.rules {
		if label, ok := r.Apply(folded); ok {
			return label, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedSizeLabel, raw)
}

// Fold applies NFKC (full-width digits, dots, letters and spaces become
// ASCII) and removes all whitespace.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// DefaultRules is the built-in rule order: canonical labels first, then
// weight+grade variants.
func DefaultRules() []Rule {
	return []Rule{
		canonicalRule{},
		weightGradeRule{},
	}
}

var canonicalPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)kg([上下])$`)

// canonicalRule accepts labels already in "<n>kg<grade>" form.
type canonicalRule struct{}

func (canonicalRule) Name() string { return "canonical" }

func (canonicalRule) Apply(s string) (string, bool) {
	m := canonicalPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return label(m[1], m[2])
}

var weightGradePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(?:kg|KG|Kg|キロ)?(以上|以下|上|下|UP|up|Up)`)

// weightGradeRule accepts "4.5上", "4.5kg以上", "1.8下" and similar,
// ignoring trailing annotations such as "(B)".
type weightGradeRule struct{}

func (weightGradeRule) Name() string { return "weight_grade" }

func (weightGradeRule) Apply(s string) (string, bool) {
	m := weightGradePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return label(m[1], m[2])
}

// Canonical returns the canonical form of a label the built-in rules
// recognize, e.g. "4.50kg以上" -> "4.5kg上".
func Canonical(label string) (string, error) {
	return builtin.Normalize(label)
}

var builtin = NewNormalizer()

// ValidateAliases reports the first alias with an empty source or a target
// that is not a recognizable size label.
func ValidateAliases(aliases map[string]string) error {
	froms := make([]string, 0, len(aliases))
	for from := range aliases {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		if Fold(from) == "" {
			return fmt.Errorf("alias with empty source -> %q", aliases[from])
		}
		if _, err := Canonical(aliases[from]); err != nil {
			return fmt.Errorf("alias %q: target: %w", from, err)
		}
	}
	return nil
}

// AliasRule maps exact (folded) texts to canonical labels.
type AliasRule struct {
	aliases map[string]string
}

// NewAliasRule canonicalizes every target; aliases with a target that is
// not a size label are dropped.
func NewAliasRule(aliases map[string]string) AliasRule {
	m := make(map[string]string, len(aliases))
	for from, to := range aliases {
		label, err := Canonical(to)
		if err != nil {
			continue
		}
		m[Fold(from)] = label
	}
	return AliasRule{aliases: m}
}

func (AliasRule) Name() string { return "alias" }

func (r AliasRule) Apply(s string) (string, bool) {
	to, ok := r.aliases[s]
	return to, ok
}

func label(weight, grade string) (string, bool) {
	w, err := strconv.ParseFloat(weight, 64)
	if err != nil || w <= 0 {
		return "", false
	}
	switch grade {
	case "上", "以上", "UP", "up", "Up":
		grade = "上"
	case "下", "以下":
		grade = "下"
	default:
		return "", false
	}
	return strconv.FormatFloat(w, 'f', -1, 64) + "kg" + grade, true
}
