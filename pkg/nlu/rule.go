package nlu

import (
	"regexp"
	"strings"

	"voicecmd/pkg/command"
)

// DefaultRuleMinConfidence is the intent-match threshold below which
// the rule engine reports no match.
const DefaultRuleMinConfidence = 0.5

const trailingPunct = ".,!?;:"

var (
	integerRe = regexp.MustCompile(`\b[0-9]+\b`)
	doubleRe  = regexp.MustCompile(`\b[0-9]+\.?[0-9]*\b`)
)

// RuleEngine is the default NLU. Intent matching scores the
// normalized transcript against every trigger phrase by edit-distance
// similarity (substring hits are boosted to at least 0.8), then
// parameters are extracted per type from the argument region that
// remains after the matched trigger.
type RuleEngine struct {
	minConfidence float32
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{minConfidence: DefaultRuleMinConfidence}
}

func (e *RuleEngine) SetMinConfidence(threshold float32) {
	e.minConfidence = threshold
}

func (e *RuleEngine) Init() error { return nil }

func (e *RuleEngine) Name() string { return "rule_based" }

func (e *RuleEngine) Process(transcript string, schemas []command.Descriptor) Result {
	if transcript == "" {
		return Result{ErrorMessage: "empty transcript"}
	}
	if len(schemas) == 0 {
		return Result{ErrorMessage: "no command schemas provided"}
	}

	match := matchIntent(transcript, schemas)
	if match.descriptor == nil || match.score < e.minConfidence {
		return Result{ErrorMessage: "no matching command found (confidence too low)"}
	}

	region := argumentRegion(Normalize(transcript), match.trigger)

	params := make(map[string]string)
	for _, param := range match.descriptor.Parameters {
		if value := extractParam(region, param); value != "" {
			params[param.Name] = value
		}
	}

	return Result{
		Success:     true,
		CommandName: match.descriptor.Name,
		Confidence:  match.score,
		Params:      params,
	}
}

type intentMatch struct {
	descriptor *command.Descriptor
	score      float32

	// trigger is the normalized phrase that won; the argument region
	// is what follows it in the transcript.
	trigger string
}

// matchIntent keeps the single best (descriptor, score, trigger)
// across all schemas and phrases. Comparisons are strict, so on a tie
// the first candidate in iteration order wins.
func matchIntent(transcript string, schemas []command.Descriptor) intentMatch {
	normalized := Normalize(transcript)

	var best intentMatch
	for i := range schemas {
		descriptor := &schemas[i]

		for _, phrase := range descriptor.TriggerPhrases {
			trigger := Normalize(phrase)
			score := Similarity(normalized, trigger)

			// A trigger spoken inside a longer utterance is a strong
			// signal even when the edit distance is large.
			if trigger != "" && strings.Contains(normalized, trigger) && score < 0.8 {
				score = 0.8
			}

			if best.descriptor == nil || score > best.score {
				best = intentMatch{descriptor: descriptor, score: score, trigger: trigger}
			}
		}

		// The command name with underscores spelled as spaces acts as
		// a fallback trigger.
		nameTrigger := strings.ReplaceAll(Normalize(descriptor.Name), "_", " ")
		if score := Similarity(normalized, nameTrigger); best.descriptor == nil || score > best.score {
			best = intentMatch{descriptor: descriptor, score: score, trigger: nameTrigger}
		}
	}

	return best
}

// argumentRegion isolates the part of the normalized transcript the
// parameters live in. Exact substring wins; otherwise the trigger's
// word sequence is slid over the transcript and the best position is
// cut off when at least half its words match; otherwise the whole
// transcript is the region.
func argumentRegion(normalized, trigger string) string {
	if trigger != "" {
		if idx := strings.Index(normalized, trigger); idx >= 0 {
			return strings.TrimLeft(normalized[idx+len(trigger):], " \t")
		}
	}

	triggerWords := strings.Fields(trigger)
	words := strings.Fields(normalized)

	if len(triggerWords) > 0 && len(words) >= len(triggerWords) {
		bestFrac := float32(0)
		bestEnd := -1

		for start := 0; start+len(triggerWords) <= len(words); start++ {
			matches := 0
			for i, tw := range triggerWords {
				if words[start+i] == tw {
					matches++
				}
			}
			frac := float32(matches) / float32(len(triggerWords))
			if frac > bestFrac {
				bestFrac = frac
				bestEnd = start + len(triggerWords)
			}
		}

		if bestFrac >= 0.5 && bestEnd >= 0 {
			return strings.Join(words[bestEnd:], " ")
		}
	}

	return normalized
}

func extractParam(region string, param command.ParamDescriptor) string {
	switch param.Type {
	case command.TypeInteger:
		return extractNumber(region, param.Name, integerRe)
	case command.TypeDouble:
		return extractNumber(region, param.Name, doubleRe)
	case command.TypeBool:
		return extractBool(region)
	case command.TypeEnum:
		return extractEnum(region, param.EnumValues)
	case command.TypeString:
		return extractString(region, param.Name)
	}
	return ""
}

// extractNumber returns the single match, or with several matches the
// one starting closest to the parameter's name keyword; without a
// keyword hit, the first match in the region.
func extractNumber(region, paramName string, re *regexp.Regexp) string {
	locs := re.FindAllStringIndex(region, -1)
	if len(locs) == 0 {
		return ""
	}
	if len(locs) == 1 {
		return region[locs[0][0]:locs[0][1]]
	}

	keyword := paramKeyword(paramName)
	keywordPos := strings.Index(region, keyword)
	if keywordPos < 0 {
		return region[locs[0][0]:locs[0][1]]
	}

	best := locs[0]
	bestDist := absInt(locs[0][0] - keywordPos)
	for _, loc := range locs[1:] {
		if d := absInt(loc[0] - keywordPos); d < bestDist {
			bestDist = d
			best = loc
		}
	}
	return region[best[0]:best[1]]
}

// extractBool scans whole words so that "on" does not fire inside
// longer words.
func extractBool(region string) string {
	for _, word := range strings.Fields(region) {
		switch strings.Trim(word, trailingPunct) {
		case "yes", "true", "enable", "on":
			return "true"
		case "no", "false", "disable", "off":
			return "false"
		}
	}
	return ""
}

// extractEnum returns the first declared value present in the region.
func extractEnum(region string, values []string) string {
	for _, value := range values {
		if strings.Contains(region, strings.ToLower(value)) {
			return value
		}
	}
	return ""
}

// extractString tries, in order: up to three words after the
// parameter's name keyword, up to four words after a preposition, and
// finally the whole region. All results have trailing punctuation
// stripped.
func extractString(region, paramName string) string {
	keyword := paramKeyword(paramName)
	if idx := strings.Index(region, keyword); idx >= 0 {
		if value := takeWords(region[idx+len(keyword):], 3); value != "" {
			return value
		}
	}

	words := strings.Fields(region)
	for i, word := range words {
		switch strings.Trim(word, trailingPunct) {
		case "to", "at", "near", "called", "named":
			if value := joinWords(words[i+1:], 4); value != "" {
				return value
			}
		}
	}

	if trimmed := strings.TrimSpace(region); trimmed != "" {
		return strings.TrimRight(trimmed, trailingPunct)
	}
	return ""
}

func takeWords(s string, n int) string {
	return joinWords(strings.Fields(s), n)
}

func joinWords(words []string, n int) string {
	if len(words) > n {
		words = words[:n]
	}
	return strings.TrimRight(strings.Join(words, " "), trailingPunct)
}

func paramKeyword(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", " ")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
