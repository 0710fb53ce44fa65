// Package validation checks that a rendered trade setup agrees with the
// strategy it claims to implement. Findings are returned as a report, never
// as errors.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
)

// ErrorKind identifies which consistency rule a finding came from.
type ErrorKind string

const (
	PutSpreadHasCalls    ErrorKind = "put_spread_has_calls"
	CallSpreadHasPuts    ErrorKind = "call_spread_has_puts"
	IronCondorIncomplete ErrorKind = "iron_condor_incomplete"
	BiasMismatch         ErrorKind = "bias_mismatch"
	LegMismatch          ErrorKind = "leg_mismatch"
	MissingAction        ErrorKind = "missing_action"
	MissingLegs          ErrorKind = "missing_legs"
)

// Error is one failed rule.
type Error struct {
	Kind     ErrorKind       `json:"kind"`
	Message  string          `json:"message"`
	Severity models.Severity `json:"severity"`
}

// Report is the outcome of validating one strategy/setup pair. A setup is
// valid only when no rule fired.
type Report struct {
	IsValid         bool     `json:"is_valid"`
	Errors          []Error  `json:"errors"`
	Recommendations []string `json:"recommendations"`
}

// HighestSeverity returns the most severe finding, or "" for a valid report.
func (r Report) HighestSeverity() models.Severity {
	var worst models.Severity
	for _, e := range r.Errors {
		if e.Severity.Rank() > worst.Rank() {
			worst = e.Severity
		}
	}
	return worst
}

// Validate runs every consistency rule against setup. Tokens are taken from
// the setup's action text and leg lines only, so descriptions and strategy
// names never trigger a rule by themselves.
func Validate(def strategy.Definition, setup strategy.TradeSetup) Report {
	name := tokenize(def.Name)
	text := tokenize(setup.Action + " " + strings.Join(setup.Legs, " "))
	label := strings.ToLower(def.Name)

	var errs []Error
	add := func(kind ErrorKind, sev models.Severity, format string, args ...any) {
		errs = append(errs, Error{Kind: kind, Message: fmt.Sprintf(format, args...), Severity: sev})
	}

	if name.has("put") && name.has("spread") && text.has("call") {
		add(PutSpreadHasCalls, models.SeverityCritical,
			"%s trade setup contains call options", def.Name)
	}
	if name.has("call") && name.has("spread") && text.has("put") {
		add(CallSpreadHasPuts, models.SeverityCritical,
			"%s trade setup contains put options", def.Name)
	}
	if name.has("iron") && name.has("condor") && !(text.has("call") && text.has("put")) {
		add(IronCondorIncomplete, models.SeverityCritical,
			"%s trade setup must contain both calls and puts", def.Name)
	}
	if def.MarketBias == models.BiasBullish && name.has("bear") {
		add(BiasMismatch, models.SeverityHigh,
			"%s is a bearish strategy marked bullish", def.Name)
	}
	if def.MarketBias == models.BiasBearish && name.has("bull") {
		add(BiasMismatch, models.SeverityHigh,
			"%s is a bullish strategy marked bearish", def.Name)
	}
	if msg, ok := compareLegs(def, setup); !ok {
		add(LegMismatch, models.SeverityHigh, "%s", msg)
	}
	if strings.TrimSpace(setup.Action) == "" {
		add(MissingAction, models.SeverityHigh, "trade setup has no action description")
	}
	if !hasLegLines(setup.Legs) {
		add(MissingLegs, models.SeverityHigh, "trade setup has no legs")
	}

	return Report{
		IsValid:         len(errs) == 0,
		Errors:          errs,
		Recommendations: recommendations(errs, label),
	}
}

// ValidateBuilt validates a built strategy against its own rendered setup.
func ValidateBuilt(b strategy.Built) Report {
	return Validate(b.Definition, b.Setup)
}

func hasLegLines(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func recommendations(errs []Error, label string) []string {
	seen := make(map[ErrorKind]bool, len(errs))
	recs := make([]string, 0, len(errs))
	for _, e := range errs {
		if seen[e.Kind] {
			continue
		}
		seen[e.Kind] = true
		recs = append(recs, recommendation(e.Kind, label))
	}
	return recs
}

func recommendation(kind ErrorKind, label string) string {
	switch kind {
	case PutSpreadHasCalls:
		return "Replace call options with put options for " + label
	case CallSpreadHasPuts:
		return "Replace put options with call options for " + label
	case IronCondorIncomplete:
		return "Include both a put spread and a call spread for " + label
	case BiasMismatch:
		return "Align the market bias with the direction of " + label
	case LegMismatch:
		return "Regenerate the trade setup from the legs of " + label
	case MissingAction:
		return "Describe the trade action for " + label
	case MissingLegs:
		return "List every leg of " + label
	default:
		return "Review the trade setup for " + label
	}
}

// compareLegs regenerates the strategy's legs with reference strikes and
// compares their action/kind multisets with the legs parsed from setup.
// Definitions outside the registry are not checked.
func compareLegs(def strategy.Definition, setup strategy.TradeSetup) (string, bool) {
	expected, err := def.GenerateLegs(strategy.CanonicalParams(def.Kind))
	if errors.Is(err, strategy.ErrUnknownStrategy) {
		registered, lookupErr := strategy.Lookup(def.Name)
		if lookupErr != nil {
			return "", true
		}
		expected, err = registered.GenerateLegs(strategy.CanonicalParams(registered.Kind))
	}
	if err != nil {
		return "", true
	}

	want := make([]legShape, len(expected))
	for i, leg := range expected {
		want[i] = legShape{action: leg.Action, kind: leg.OptionKind}
	}
	got := parseShapes(setup.Legs)
	if len(got) == 0 {
		got = parseShapes(splitAction(setup.Action))
	}

	if diff := diffCounts(kindsOf(want), kindsOf(got)); diff != "" {
		return fmt.Sprintf("%s option kinds do not match its legs: %s", def.Name, diff), false
	}
	if diff := diffCounts(actionsOf(want), actionsOf(got)); diff != "" {
		return fmt.Sprintf("%s actions do not match its legs: %s", def.Name, diff), false
	}
	if diff := diffCounts(pairsOf(want), pairsOf(got)); diff != "" {
		return fmt.Sprintf("%s legs do not match: %s", def.Name, diff), false
	}
	return "", true
}

// legShape is a leg reduced to what the setup text can be checked against.
type legShape struct {
	action models.ActionKind
	kind   models.OptionKind
}

// splitAction breaks "Sell 180 Put / Buy 175 Put" into per-leg phrases.
func splitAction(action string) []string {
	return strings.FieldsFunc(action, func(r rune) bool {
		return r == '/' || r == ',' || r == ';' || r == '+'
	})
}

// parseShapes reads the legs in lines. A line may join several legs with
// the separators splitAction knows; phrases without both an action and an
// option kind are ignored.
func parseShapes(lines []string) []legShape {
	var phrases []string
	for _, line := range lines {
		phrases = append(phrases, splitAction(line)...)
	}

	var shapes []legShape
	for _, phrase := range phrases {
		var s legShape
		for _, tok := range tokenize(phrase) {
			switch {
			case s.action == "" && (tok == "buy" || tok == "sell"):
				s.action = models.ActionKind(tok)
			case s.kind == "" && (tok == "call" || tok == "calls"):
				s.kind = models.Call
			case s.kind == "" && (tok == "put" || tok == "puts"):
				s.kind = models.Put
			}
		}
		if s.action != "" && s.kind != "" {
			shapes = append(shapes, s)
		}
	}
	return shapes
}

func kindsOf(shapes []legShape) map[string]int {
	m := make(map[string]int)
	for _, s := range shapes {
		m[string(s.kind)]++
	}
	return m
}

func actionsOf(shapes []legShape) map[string]int {
	m := make(map[string]int)
	for _, s := range shapes {
		m[string(s.action)]++
	}
	return m
}

func pairsOf(shapes []legShape) map[string]int {
	m := make(map[string]int)
	for _, s := range shapes {
		m[string(s.action)+" "+string(s.kind)]++
	}
	return m
}

// diffCounts describes how got differs from want, or returns "" when the
// multisets are equal.
func diffCounts(want, got map[string]int) string {
	keys := make(map[string]struct{}, len(want)+len(got))
	for k := range want {
		keys[k] = struct{}{}
	}
	for k := range got {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var parts []string
	for _, k := range sorted {
		if want[k] != got[k] {
			parts = append(parts, fmt.Sprintf("%s expected %d got %d", k, want[k], got[k]))
		}
	}
	return strings.Join(parts, ", ")
}

// tokens are the lower-case words of a text.
type tokens []string

// tokenize splits text into lower-case words of letters and digits.
func tokenize(text string) tokens {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// has reports whether word, or its plural, is present.
func (t tokens) has(word string) bool {
	for _, tok := range t {
		if tok == word || tok == word+"s" {
			return true
		}
	}
	return false
}
