package composer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLLM struct {
	text string
	err  error
}

func (f fakeLLM) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f.text, f.err
}

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }
func str(v string) *string { return &v }

func TestFmtBRL(t *testing.T) {
	cases := []struct {
		in   *float64
		want string
	}{
		{nil, "-"},
		{f(1234.5), "R$ 1.234,50"},
		{f(50000), "R$ 50.000,00"},
		{f(9.99), "R$ 9,99"},
	}
	for _, c := range cases {
		if got := fmtBRL(c.in); got != c.want {
			t.Errorf("fmtBRL(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFmtPct(t *testing.T) {
	cases := []struct {
		in   *float64
		want string
	}{
		{nil, "-"},
		{f(1.5), "1,50% a.m."},
		{f(0), "0,00% a.m."},
	}
	for _, c := range cases {
		if got := fmtPct(c.in); got != c.want {
			t.Errorf("fmtPct(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFallbackMessageNoOffer(t *testing.T) {
	env := pipeline.MatchedEnvelope{
		AgentAnalysis: pipeline.AgentAnalysis{
			Company:                  str("Itaú"),
			CurrentInstallmentNumber: n(5),
			InstallmentCount:         n(60),
			InstallmentAmount:        f(1200),
		},
		OfferAvailable: false,
	}
	msg := fallbackMessage(env)
	if msg == "" {
		t.Fatal("expected non-empty fallback message")
	}
	if utf8.RuneCountInString(msg) > noOfferMaxChars {
		t.Errorf("no-offer fallback message exceeds %d chars: %d", noOfferMaxChars, utf8.RuneCountInString(msg))
	}
}

func TestFallbackMessageWithOffer(t *testing.T) {
	env := pipeline.MatchedEnvelope{
		AgentAnalysis: pipeline.AgentAnalysis{
			Company:                  str("Santander"),
			CurrentInstallmentNumber: n(10),
			InstallmentCount:         n(120),
			InstallmentAmount:        f(2500),
		},
		OfferAvailable: true,
		EligibleOffer: &pipeline.EligibleOffer{
			RemainingFinanceAmount: 180000,
			CurrentFinanceMonthTax: 1.8,
			NewFinanceMonthTax:     1.2,
			NewFinancingAmount:     180000,
			PotentialSavings:       15000,
		},
	}
	msg := fallbackMessage(env)
	if utf8.RuneCountInString(msg) > yesOfferMaxChars {
		t.Errorf("yes-offer fallback message exceeds %d chars: %d", yesOfferMaxChars, utf8.RuneCountInString(msg))
	}
	if msg == "" {
		t.Fatal("expected non-empty fallback message")
	}
}

func TestComposeFallsBackWhenLLMNil(t *testing.T) {
	s := New(nil, nil, discardLogger())

	env := pipeline.MatchedEnvelope{
		AgentAnalysis: pipeline.AgentAnalysis{Company: str("Bradesco")},
	}

	got := s.compose(context.Background(), env)
	if got == "" {
		t.Fatal("expected fallback message when llm client is nil")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 600); got != "short" {
		t.Errorf("truncateRunes should leave short strings untouched, got %q", got)
	}

	long := strings.Repeat("á", 700) // multi-byte rune, exercises rune- not byte-counting
	got := truncateRunes(long, maxComposedChars)
	if n := utf8.RuneCountInString(got); n != maxComposedChars {
		t.Errorf("truncateRunes left %d runes, want %d", n, maxComposedChars)
	}
}

func TestComposeEnforcesHardCapOnLLMOutput(t *testing.T) {
	s := New(fakeLLM{text: strings.Repeat("x", 5000)}, nil, discardLogger())

	env := pipeline.MatchedEnvelope{
		AgentAnalysis:  pipeline.AgentAnalysis{Company: str("Bradesco")},
		OfferAvailable: false,
	}

	got := s.compose(context.Background(), env)
	if n := utf8.RuneCountInString(got); n > maxComposedChars {
		t.Errorf("compose() returned %d runes, want <= %d", n, maxComposedChars)
	}
}
