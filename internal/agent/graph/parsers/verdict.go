package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/chative/lending-agent/internal/agent/model"
)

// basic safety limits to avoid pathological inputs
const (
	maxVerdictLen = 4 * 1024
	maxCategories = 32
)

// ErrUnparseable is returned when a model verdict matches no known form.
var ErrUnparseable = fmt.Errorf("unparseable verdict")

// RouteVerdict is the classifier model's one-word answer.
type RouteVerdict string

const (
	VerdictSimple  RouteVerdict = "SIMPLE"
	VerdictComplex RouteVerdict = "COMPLEX"
)

// ParseRouteVerdict reads the first word of the classifier output.
func ParseRouteVerdict(content string) (RouteVerdict, error) {
	if len(content) > maxVerdictLen {
		content = content[:maxVerdictLen]
	}
	word := firstWord(content)
	switch RouteVerdict(strings.ToUpper(word)) {
	case VerdictSimple:
		return VerdictSimple, nil
	case VerdictComplex:
		return VerdictComplex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseable, truncate(content, 40))
}

// Tier maps a verdict to a model tier.
func (v RouteVerdict) Tier() model.Tier {
	if v == VerdictSimple {
		return model.TierFast
	}
	return model.TierCapable
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

var categoryRe = regexp.MustCompile(`\bS(1[0-4]|[1-9])\b`)

// ParseGuardVerdict parses a guard model answer of the form
//
//	safe
//
// or
//
//	unsafe
//	S1,S10
func ParseGuardVerdict(content string) (model.SafetyCheckResult, error) {
	if len(content) > maxVerdictLen {
		content = content[:maxVerdictLen]
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	head := strings.ToLower(strings.TrimSpace(lines[0]))
	switch {
	case head == "safe":
		return model.SafetyCheckResult{IsSafe: true}, nil
	case strings.HasPrefix(head, "unsafe"):
		rest := strings.Join(lines, "\n")[len(lines[0]):]
		var cats []string
		for _, m := range categoryRe.FindAllString(rest, maxCategories) {
			if !contains(cats, m) {
				cats = append(cats, m)
			}
		}
		return model.SafetyCheckResult{
			IsSafe:              false,
			ViolationCategories: cats,
			Explanation:         DescribeCategories(cats),
		}, nil
	}
	return model.SafetyCheckResult{}, fmt.Errorf("%w: %q", ErrUnparseable, truncate(content, 40))
}

// HazardCategories is the guard taxonomy.
var HazardCategories = []struct {
	Code string
	Name string
}{
	{"S1", "Violent Crimes"},
	{"S2", "Non-Violent Crimes"},
	{"S3", "Sex-Related Crimes"},
	{"S4", "Child Sexual Exploitation"},
	{"S5", "Defamation"},
	{"S6", "Specialized Advice"},
	{"S7", "Privacy"},
	{"S8", "Intellectual Property"},
	{"S9", "Indiscriminate Weapons"},
	{"S10", "Hate"},
	{"S11", "Suicide & Self-Harm"},
	{"S12", "Sexual Content"},
	{"S13", "Elections"},
	{"S14", "Code Interpreter Abuse"},
}

// DescribeCategories renders "S1 (Violent Crimes), S10 (Hate)".
func DescribeCategories(codes []string) string {
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		name := "Unknown"
		for _, h := range HazardCategories {
			if h.Code == c {
				name = h.Name
				break
			}
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", c, name))
	}
	return strings.Join(parts, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
