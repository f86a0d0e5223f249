// Package moderation implements the content gate applied to submitted story
// text and titles. A Filter reports flagged words and phrases; an empty result
// means the text may be stored.
package moderation

import (
	"bufio"
	_ "embed"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed wordlist.txt
var defaultWordList string

// substitutes maps common look-alike characters onto the letters they stand in for.
var substitutes = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'@': 'a',
	'$': 's',
}

// Filter is a word-list moderation gate. It is safe for concurrent use.
type Filter struct {
	phrases   map[string]struct{}
	maxTokens int
}

// New builds a Filter from entries. Entries are normalized the same way as
// checked text, so "Résumé" and "resume" are the same entry.
func New(entries []string) *Filter {
	f := &Filter{
		phrases: make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		tokens := f.tokens(e)
		if len(tokens) == 0 {
			continue
		}
		f.phrases[strings.Join(tokens, " ")] = struct{}{}
		if len(tokens) > f.maxTokens {
			f.maxTokens = len(tokens)
		}
	}
	return f
}

// Default returns a Filter over the bundled English word list.
func Default() *Filter {
	return New(ParseList(defaultWordList))
}

// ParseList splits a word list into entries, skipping blank lines and lines
// starting with '#'.
func ParseList(list string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(list))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Check returns one violation per distinct flagged entry found in text, in
// order of first appearance. Nil means the text passed.
func (f *Filter) Check(text string) []string {
	tokens := f.tokens(text)
	if len(tokens) == 0 || f.maxTokens == 0 {
		return nil
	}

	var violations []string
	seen := make(map[string]struct{})
	for i := range tokens {
		for n := 1; n <= f.maxTokens && i+n <= len(tokens); n++ {
			candidate := strings.Join(tokens[i:i+n], " ")
			if _, ok := f.phrases[candidate]; !ok {
				continue
			}
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			violations = append(violations, "flagged word: "+candidate)
		}
	}
	return violations
}

// tokens folds case, strips diacritics, maps look-alike characters and
// splits on anything that is not a letter.
func (f *Filter) tokens(s string) []string {
	// transformers and casers carry state, so they are built per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = cases.Fold().String(plain)

	mapped := strings.Map(func(r rune) rune {
		if sub, ok := substitutes[r]; ok {
			return sub
		}
		return r
	}, plain)

	return strings.FieldsFunc(mapped, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
