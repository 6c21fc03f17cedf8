package seedcodec

import (
	"strings"
	"testing"

	"github.com/gamefactory/gamefactory-go/game"
)

func TestEncodeProducesValidSeed(t *testing.T) {
	settings := game.Settings{
		Genre:  game.GenreFantasy,
		Tone:   game.ToneLight,
		Length: game.LengthMedium,
	}

	seed := Encode(settings)
	if !IsValid(seed) {
		t.Fatalf("Encode produced invalid seed %q", seed)
	}
	if !strings.HasPrefix(seed, "GF-FAN-L-M-") {
		t.Fatalf("seed %q missing expected prefix", seed)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []game.Settings{
		{Genre: game.GenreFantasy, Tone: game.ToneLight, Length: game.LengthMedium},
		{Genre: game.GenreSciFi, Tone: game.ToneSerious, Length: game.LengthShort},
		{Genre: game.GenreMystery, Tone: game.ToneLight, Length: game.LengthLong},
		{Genre: game.GenreHorrorLite, Tone: game.ToneSerious, Length: game.LengthMedium},
	}

	for _, settings := range tests {
		seed := Encode(settings)
		decoded, ok := Decode(seed)
		if !ok {
			t.Fatalf("Decode(%q) failed", seed)
		}
		if decoded.Genre != settings.Genre {
			t.Fatalf("Decode(%q) genre = %q, want %q", seed, decoded.Genre, settings.Genre)
		}
		if decoded.Tone != settings.Tone {
			t.Fatalf("Decode(%q) tone = %q, want %q", seed, decoded.Tone, settings.Tone)
		}
		if decoded.Length != settings.Length {
			t.Fatalf("Decode(%q) length = %q, want %q", seed, decoded.Length, settings.Length)
		}
	}
}

func TestDecodeRejectsMalformedSeeds(t *testing.T) {
	bad := []string{
		"",
		"GF",
		"GF-FAN-L-M",          // missing random suffix
		"XX-FAN-L-M-AAAA",     // wrong prefix
		"GF-ZZZ-L-M-AAAA",     // unknown genre
		"GF-FAN-L-M-AAAA-EXT", // too many parts
	}
	for _, seed := range bad {
		if _, ok := Decode(seed); ok {
			t.Fatalf("Decode(%q) unexpectedly succeeded", seed)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("GF-SCI-L-M-7K9X") {
		t.Fatal("expected documented example seed to validate")
	}
	if IsValid("GF-SCI-L-M-7k9x") {
		t.Fatal("lowercase suffix should not validate")
	}
	if IsValid("GF-SCI-X-M-7K9X") {
		t.Fatal("unknown tone code should not validate")
	}
}

func TestNewRunRef(t *testing.T) {
	first := NewRunRef()
	second := NewRunRef()

	if !strings.HasPrefix(first, "run-") {
		t.Fatalf("run ref %q missing prefix", first)
	}
	if first == second {
		t.Fatal("run refs must be unique")
	}
}

func TestShareText(t *testing.T) {
	text := ShareText("GF-FAN-L-M-AAAA", "The Ancient Realm", 12)

	if !strings.Contains(text, "12 turns") {
		t.Fatalf("share text missing turn count: %q", text)
	}
	if !strings.Contains(text, "Seed: GF-FAN-L-M-AAAA") {
		t.Fatalf("share text missing seed: %q", text)
	}
}
