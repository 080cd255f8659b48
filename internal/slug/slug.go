// Package slug builds URL slugs from article titles.
package slug

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBaseLength = 80
	fallbackBase  = "article"
)

// MaxAttempts is how many candidates Generator produces for one title.
const MaxAttempts = 2

// letters that do not decompose under NFD
var specialLetters = strings.NewReplacer("đ", "d", "ø", "o", "ß", "ss", "æ", "ae", "œ", "oe", "ł", "l")

// Make lowercases s, strips diacritics and joins alphanumeric runs with dashes.
func Make(s string) string {
	s = specialLetters.Replace(strings.ToLower(s))

	// transform chains are stateful, so one is built per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	return truncate(b.String(), maxBaseLength)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.Trim(s, "-")
}

// Generator produces unique slug candidates: the title slug, an 8 hex char
// random token and a microsecond timestamp. The second candidate appends
// extra entropy for use after a collision.
type Generator struct {
	now   func() time.Time
	token func() string
}

// NewGenerator returns a Generator using the wall clock and random UUIDs.
func NewGenerator() *Generator {
	return &Generator{
		now:   time.Now,
		token: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// NewGeneratorWith returns a Generator with injected clock and token source.
func NewGeneratorWith(now func() time.Time, token func() string) *Generator {
	return &Generator{now: now, token: token}
}

// Candidate returns the slug to try for the given zero-based attempt.
func (g *Generator) Candidate(title string, attempt int) string {
	base := Make(title)
	if base == "" {
		base = fallbackBase
	}

	slug := base + "-" + pad(g.token(), 8) + "-" + strconv.FormatInt(g.now().UnixMicro(), 10)
	if attempt > 0 {
		slug += "-" + pad(g.token(), 6)
	}
	return slug
}

func pad(token string, n int) string {
	for len(token) < n {
		token += "0"
	}
	return token[:n]
}
