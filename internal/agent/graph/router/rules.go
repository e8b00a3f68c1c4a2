package router

import (
	"regexp"
	"strings"

	"github.com/chative/lending-agent/internal/agent/model"
)

// DefaultSimplePatterns match short conversational turns and simple lookups.
var DefaultSimplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|howdy|greetings|good (morning|afternoon|evening))\b`),
	regexp.MustCompile(`^(thanks|thank you|thx|ok|okay|great|cool|bye|goodbye)\b`),
	regexp.MustCompile(`^(what('s| is)|show( me)?|check|tell me) (my|the)\b`),
	regexp.MustCompile(`^(who|what) are you\b`),
	regexp.MustCompile(`^(yes|no|sure)\b`),
}

// Rules is the deterministic fallback classifier.
type Rules struct {
	// MaxSimpleWords is the largest word count still eligible for the fast tier.
	MaxSimpleWords int
	// ToolsMandatory routes every message to the capable tier.
	ToolsMandatory bool
	Patterns       []*regexp.Regexp
}

// DefaultRules returns rules with DefaultSimplePatterns.
func DefaultRules(maxWords int, toolsMandatory bool) Rules {
	return Rules{MaxSimpleWords: maxWords, ToolsMandatory: toolsMandatory, Patterns: DefaultSimplePatterns}
}

// Classify is total over all input text.
func (r Rules) Classify(text string) model.Tier {
	if r.ToolsMandatory {
		return model.TierCapable
	}
	q := strings.ToLower(strings.TrimSpace(text))
	words := len(strings.Fields(q))
	if words == 0 {
		return model.TierFast
	}
	if r.MaxSimpleWords > 0 && words > r.MaxSimpleWords {
		return model.TierCapable
	}
	for _, p := range r.Patterns {
		if p.MatchString(q) {
			return model.TierFast
		}
	}
	return model.TierCapable
}
