// Package seedcodec encodes run settings into short shareable seed codes and
// back, and allocates run references.
//
// Seed format: GF-{GENRE}-{TONE}-{LENGTH}-{RANDOM}, e.g. GF-SCI-L-M-7K9X.
// The random suffix is the only non-deterministic input a run ever receives;
// everything after creation derives from the full seed string.
package seedcodec

import (
	crand "crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/gamefactory/gamefactory-go/game"
)

const Prefix = "GF"

var genreCodes = map[game.Genre]string{
	game.GenreFantasy:    "FAN",
	game.GenreSciFi:      "SCI",
	game.GenreMystery:    "MYS",
	game.GenreHorrorLite: "HOR",
}

var toneCodes = map[game.Tone]string{
	game.ToneSerious: "S",
	game.ToneLight:   "L",
}

var lengthCodes = map[game.Length]string{
	game.LengthShort:  "S",
	game.LengthMedium: "M",
	game.LengthLong:   "L",
}

// codeChars omits I, O, 0 and 1 for legibility. Exactly 32 characters so a
// random byte mod length is unbiased.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var seedPattern = regexp.MustCompile(`^GF-[A-Z]{3}-[SL]-[SML]-[A-Z0-9]{4}$`)

// Decoded holds the settings recoverable from a seed code. The random suffix
// is deliberately not settings: two runs with equal settings still diverge.
type Decoded struct {
	Genre  game.Genre
	Tone   game.Tone
	Length game.Length
}

// Encode builds a fresh seed for the given settings. Each call draws a new
// random suffix, so the result is unique per run.
func Encode(settings game.Settings) string {
	genre, ok := genreCodes[settings.Genre]
	if !ok {
		genre = "UNK"
	}
	tone, ok := toneCodes[settings.Tone]
	if !ok {
		tone = "L"
	}
	length, ok := lengthCodes[settings.Length]
	if !ok {
		length = "M"
	}
	return strings.Join([]string{Prefix, genre, tone, length, randomCode()}, "-")
}

// Decode recovers settings from a seed code. The second return is false when
// the seed does not parse or names an unknown genre.
func Decode(seed string) (Decoded, bool) {
	parts := strings.Split(seed, "-")
	if len(parts) != 5 || parts[0] != Prefix {
		return Decoded{}, false
	}

	out := Decoded{Tone: game.DefaultTone, Length: game.DefaultLength}

	found := false
	for genre, code := range genreCodes {
		if code == parts[1] {
			out.Genre = genre
			found = true
			break
		}
	}
	if !found {
		return Decoded{}, false
	}

	for tone, code := range toneCodes {
		if code == parts[2] {
			out.Tone = tone
			break
		}
	}
	for length, code := range lengthCodes {
		if code == parts[3] {
			out.Length = length
			break
		}
	}
	return out, true
}

// IsValid reports whether seed matches the shareable seed format.
func IsValid(seed string) bool {
	return seedPattern.MatchString(seed)
}

// NewRunRef allocates an opaque run reference.
func NewRunRef() string {
	return "run-" + uuid.NewString()
}

func randomCode() string {
	var buf [4]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it somehow
		// does, a constant suffix only weakens uniqueness, not safety.
		return "AAAA"
	}
	out := make([]byte, 4)
	for i, b := range buf {
		out[i] = codeChars[int(b)%len(codeChars)]
	}
	return string(out)
}

// ShareText formats the challenge blurb for a completed run.
func ShareText(seed, worldName string, turnsSurvived int) string {
	return strings.Join([]string{
		"Game Factory Challenge!",
		fmt.Sprintf("I survived %d turns in %q", turnsSurvived, worldName),
		"Can you beat me?",
		"Seed: " + seed,
		"Rules: 13+ safe",
	}, "\n")
}
