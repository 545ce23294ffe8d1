package asm

import (
	"fmt"
	"unicode"

	"github.com/jakintosh/cohost/internal/core"
)

// TextToken is the tagged union the tokenizer produces. Exactly one of
// the accessor-ish fields below is meaningful per Kind.
type TextTokenKind int

const (
	TokRune TextTokenKind = iota
	TokComment
	TokCommand
	TokNumber
	TokAssembly
	TokStringLiteral
	TokNewLine
	TokTab
)

// TextToken is one lexical unit of source text.
type TextToken struct {
	Kind TextTokenKind

	Rune    rune
	Comment string
	Command Command
	Number  NumberLiteral
	Opcode  byte
	String  string
	TabN    int
}

// Tokenize scans assembly source text into a sequence of TextTokens,
// following the tokenizer rules: newlines emit NewLine then a Tab(n) for
// any immediately following indent, whitespace flushes the buffer, and a
// flushed Rune(OpenComment) is rewritten into a single Comment token that
// swallows everything up to the matching close paren.
func Tokenize(src string) ([]TextToken, error) {
	var tokens []TextToken
	runes := []rune(src)
	var buf []rune

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		tok, err := parseBuffer(string(buf))
		buf = buf[:0]
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
		return nil
	}

	i := 0
	for i < len(runes) {
		r := runes[i]

		switch {
		case r == '\n':
			if err := flush(); err != nil {
				return nil, err
			}
			tokens = append(tokens, TextToken{Kind: TokNewLine})
			i++
			n := 0
			for i < len(runes) && runes[i] == '\t' {
				n++
				i++
			}
			if n > 0 {
				tokens = append(tokens, TextToken{Kind: TokTab, TabN: n})
			}
			continue

		case unicode.IsSpace(r):
			if err := flush(); err != nil {
				return nil, err
			}
			if last := lastToken(tokens); last != nil && last.Kind == TokRune && last.Rune == RuneOpenComment {
				tokens = tokens[:len(tokens)-1]
				text, next, err := scanComment(runes, i+1)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, TextToken{Kind: TokComment, Comment: text})
				i = next
				continue
			}
			i++

		default:
			buf = append(buf, r)
			i++
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func lastToken(tokens []TextToken) *TextToken {
	if len(tokens) == 0 {
		return nil
	}
	return &tokens[len(tokens)-1]
}

// scanComment consumes runes starting at idx up to (and past) the matching
// RuneCloseComment, returning the trimmed text between them.
func scanComment(runes []rune, idx int) (string, int, error) {
	start := idx
	for idx < len(runes) && runes[idx] != RuneCloseComment {
		idx++
	}
	if idx >= len(runes) {
		return "", 0, fmt.Errorf("asm: unterminated comment")
	}
	return trimSpace(string(runes[start:idx])), idx + 1, nil
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && unicode.IsSpace(rune(s[start])) {
		start++
	}
	for end > start && unicode.IsSpace(rune(s[end-1])) {
		end--
	}
	return s[start:end]
}

// parseBuffer classifies one accumulated, whitespace-delimited token,
// trying each category in the priority order the spec defines: Rune,
// Command, Number, Assembly, StringLiteral.
func parseBuffer(s string) (TextToken, error) {
	if len(s) == 1 {
		r := []rune(s)[0]
		if structuralRunes[r] {
			return TextToken{Kind: TokRune, Rune: r}, nil
		}
	}

	if cmd, ok, err := ParseCommand(s); ok {
		if err != nil {
			return TextToken{}, err
		}
		return TextToken{Kind: TokCommand, Command: cmd}, nil
	}

	if num, ok, err := parseNumber(s); ok {
		if err != nil {
			return TextToken{}, err
		}
		return TextToken{Kind: TokNumber, Number: num}, nil
	}

	if op, ok := core.StrToOpcode(s); ok {
		return TextToken{Kind: TokAssembly, Opcode: op}, nil
	}

	if err := validateStringLiteral(s); err != nil {
		return TextToken{}, fmt.Errorf("asm: could not tokenize %q: %w", s, err)
	}
	return TextToken{Kind: TokStringLiteral, String: s}, nil
}
