package lexical

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	frontMatterRe = regexp.MustCompile(`(?s)---.*?---`)
	headingRe     = regexp.MustCompile(`#+ `)
	boldRe        = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe      = regexp.MustCompile(`\*(.*?)\*`)
)

// Tokenize normalizes raw text into indexable terms: front-matter and
// markdown markers are stripped, the rest is lowercased, split on
// whitespace, cleaned down to word runes and filtered to terms longer than
// one rune. The exact same normalization runs over documents at index build
// time and over queries at search time; lexical scores are incomparable
// otherwise.
func Tokenize(text string) []string {
	text = frontMatterRe.ReplaceAllString(text, "")
	text = headingRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")

	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		clean := cleanToken(field)
		if utf8.RuneCountInString(clean) > 1 {
			tokens = append(tokens, clean)
		}
	}
	return tokens
}

// StripFrontMatter removes the leading metadata block; used by the context
// assembler with the same delimiter rule the tokenizer applies.
func StripFrontMatter(text string) string {
	return strings.TrimSpace(frontMatterRe.ReplaceAllString(text, ""))
}

// cleanToken keeps letters (Hangul syllables included), digits and
// underscores.
func cleanToken(token string) string {
	var b strings.Builder
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
