// Package safety filters narrative content for a 13+ audience: forbidden
// keyword validation, user input sanitization, and softening substitutions.
// Every narrative string the engine emits passes through Soften before it
// leaves the process.
package safety

import (
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// ErrForbiddenContent indicates text matched the forbidden keyword list.
var ErrForbiddenContent = errors.New("safety: forbidden content")

// ForbiddenKeywords are never allowed in generated or player-supplied text.
var ForbiddenKeywords = []string{
	// Occult / spiritual
	"demon", "satan", "lucifer", "devil", "ouija", "seance", "séance",
	"pentagram", "ritual sacrifice", "dark ritual", "summoning circle",
	"necromancy", "possession", "exorcism", "cult", "occult",

	// Graphic violence
	"gore", "gory", "dismember", "decapitate", "mutilate", "torture",
	"disembowel", "eviscerate", "bloodbath", "entrails", "intestines",

	// Sexual content
	"sexual", "erotic", "nude", "naked", "seduce", "intercourse",
	"orgasm", "genitals", "breasts", "pornographic",

	// Self-harm / suicide
	"suicide", "suicidal", "self-harm", "cut myself", "kill myself",
	"end my life", "hang myself",

	// Drugs
	"cocaine", "heroin", "meth", "crack", "inject drugs", "overdose",
	"drug dealer", "drug use",

	// Gambling framing
	"bet", "wager", "gamble", "gambling", "jackpot", "casino",
	"slot machine", "poker chips", "blackjack table",

	// Hate
	"racial slur", "hate crime", "nazi", "white supremac", "ethnic cleansing",

	// Real-world weapons
	"ar-15", "ak-47", "assault rifle", "school shooting", "mass shooting",
}

// ForbiddenThemes are rejected at the template level.
var ForbiddenThemes = []string{
	"satanism",
	"demonology",
	"human_sacrifice",
	"torture_porn",
	"sexual_violence",
	"child_abuse",
	"real_world_violence",
	"terrorism",
	"self_harm",
	"eating_disorders",
}

// softenRule rewrites one unsafe phrase. Rules apply in order: an earlier
// rewrite can mask a later pattern, which keeps "you are killed" handled by
// the "killed" rule.
type softenRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var softenRules = buildSoftenRules([][2]string{
	{"killed", "defeated"},
	{"died", "fell"},
	{"blood", "shadow"},
	{"corpse", "remains"},
	{"dead body", "fallen figure"},
	{"terrifying", "unsettling"},
	{"horrifying", "disturbing"},
	{"nightmare", "bad dream"},
	{"you die", "you collapse"},
	{"you are killed", "you are overcome"},
})

func buildSoftenRules(pairs [][2]string) []softenRule {
	rules := make([]softenRule, len(pairs))
	for i, p := range pairs {
		rules[i] = softenRule{
			pattern:     regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p[0])),
			replacement: p[1],
		}
	}
	return rules
}

// Soften rewrites known unsafe phrases into milder alternatives.
func Soften(content string) string {
	for _, rule := range softenRules {
		content = rule.pattern.ReplaceAllString(content, rule.replacement)
	}
	return content
}

// Validate checks content against the forbidden keyword list. The returned
// error wraps ErrForbiddenContent and names the first matching keyword.
func Validate(content string) error {
	lowered := strings.ToLower(content)
	for _, keyword := range ForbiddenKeywords {
		if strings.Contains(lowered, keyword) {
			return fmt.Errorf("keyword %q: %w", keyword, ErrForbiddenContent)
		}
	}
	return nil
}

var (
	bracketPattern   = regexp.MustCompile(`\[.*?\]`)
	bracePattern     = regexp.MustCompile(`\{.*?\}`)
	tagPattern       = regexp.MustCompile(`<.*?>`)
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	inlineCode       = regexp.MustCompile("`.*?`")
	controlChars     = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	tagAllowedChars  = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
)

// SanitizeInput strips prompt-injection markup and control characters from
// player-supplied text, truncates it to maxLength, and validates the result.
func SanitizeInput(input string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = 200
	}

	out := bracketPattern.ReplaceAllString(input, "")
	out = bracePattern.ReplaceAllString(out, "")
	out = tagPattern.ReplaceAllString(out, "")
	out = codeBlockPattern.ReplaceAllString(out, "")
	out = inlineCode.ReplaceAllString(out, "")
	out = controlChars.ReplaceAllString(out, "")
	// Truncate on rune boundaries so multi-byte input cannot be split into
	// invalid UTF-8.
	if runes := []rune(out); len(runes) > maxLength {
		out = string(runes[:maxLength])
	}
	out = strings.TrimSpace(out)

	if err := Validate(out); err != nil {
		return "", err
	}
	return out, nil
}

// SanitizeTags normalizes custom template tags: at most three, alphanumeric,
// 20 characters each, lowercased, and keyword-clean.
func SanitizeTags(tags []string) []string {
	if len(tags) > 3 {
		tags = tags[:3]
	}

	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := tagAllowedChars.ReplaceAllString(tag, "")
		if len(cleaned) > 20 {
			cleaned = cleaned[:20]
		}
		cleaned = strings.ToLower(strings.TrimSpace(cleaned))
		if cleaned == "" {
			continue
		}
		if Validate(cleaned) != nil {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}

// ThemeAllowed reports whether a template theme passes the restriction list.
func ThemeAllowed(theme string) bool {
	for _, forbidden := range ForbiddenThemes {
		if theme == forbidden {
			return false
		}
	}
	return true
}

// DeathStyle selects how a defeat is narrated. Light-toned runs use the
// reset style; everything else fades out.
type DeathStyle string

const (
	DeathFade  DeathStyle = "fade"
	DeathReset DeathStyle = "reset"
)

var deathNarratives = map[DeathStyle][]string{
	DeathFade: {
		"Your vision fades to black...",
		"Exhaustion overtakes you as everything goes dark...",
		"The world grows distant and quiet...",
		"You slip into unconsciousness...",
	},
	DeathReset: {
		"You wake up, somehow back where you started...",
		"Time seems to rewind as you find yourself at the beginning...",
		"A strange feeling washes over you as reality shifts...",
	},
}

// DeathNarrative picks a defeat line deterministically from the run's seed,
// so replays of the same run always end on the same sentence.
func DeathNarrative(style DeathStyle, seed string) string {
	narratives, ok := deathNarratives[style]
	if !ok {
		narratives = deathNarratives[DeathFade]
	}
	h := fnv.New32a()
	h.Write([]byte(seed))
	return narratives[int(h.Sum32()%uint32(len(narratives)))]
}
