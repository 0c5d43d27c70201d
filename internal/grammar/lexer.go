package grammar

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenEOF    TokenType = iota
	TokenLAngle           // <
	TokenRAngle           // >
	TokenSlash            // /
	TokenEquals           // =
	TokenIdent            // element and attribute names
	TokenString           // "..." attribute value
	TokenError            // anything else
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenLAngle:
		return "'<'"
	case TokenRAngle:
		return "'>'"
	case TokenSlash:
		return "'/'"
	case TokenEquals:
		return "'='"
	case TokenIdent:
		return "name"
	case TokenString:
		return "quoted value"
	default:
		return "invalid text"
	}
}

// Token represents a lexer token. Pos and End are byte offsets into the
// original input, so a token that has a comment in the middle of it spans
// the comment too.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int

	// SpaceBefore is true when whitespace separates this token from the
	// previous one. Comments alone do not count as whitespace.
	SpaceBefore bool
}

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// Lexer tokenizes record file text. Comments are skipped wherever they
// appear, including inside names and quoted values.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	space := l.skipTrivia()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos, End: l.pos, SpaceBefore: space}
	}

	start := l.pos
	ch := l.input[l.pos]

	single := func(t TokenType) Token {
		l.pos++
		return Token{Type: t, Value: string(ch), Pos: start, End: l.pos, SpaceBefore: space}
	}

	switch ch {
	case '<':
		return single(TokenLAngle)
	case '>':
		return single(TokenRAngle)
	case '/':
		return single(TokenSlash)
	case '=':
		return single(TokenEquals)
	case '"':
		return l.scanString(space)
	default:
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if isIdentRune(r) {
			return l.scanIdent(space)
		}
		l.pos += size
		return Token{Type: TokenError, Value: string(r), Pos: start, End: l.pos, SpaceBefore: space}
	}
}

// Tokens lexes the whole input. The last token is always TokenEOF.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out
		}
	}
}

// skipTrivia skips whitespace and comments and reports whether any
// whitespace was seen.
func (l *Lexer) skipTrivia() bool {
	space := false
	for l.pos < len(l.input) {
		if l.skipComment() {
			continue
		}
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		space = true
		l.pos += size
	}
	return space
}

// skipComment skips one terminated comment at the current position.
// An unterminated comment is not a comment.
func (l *Lexer) skipComment() bool {
	if !strings.HasPrefix(l.input[l.pos:], commentOpen) {
		return false
	}
	end := strings.Index(l.input[l.pos+len(commentOpen):], commentClose)
	if end < 0 {
		return false
	}
	l.pos += len(commentOpen) + end + len(commentClose)
	return true
}

func (l *Lexer) scanIdent(space bool) Token {
	start := l.pos
	var b strings.Builder
	for l.pos < len(l.input) {
		if l.skipComment() {
			continue
		}
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isIdentRune(r) {
			break
		}
		b.WriteRune(r)
		l.pos += size
	}
	return Token{Type: TokenIdent, Value: b.String(), Pos: start, End: l.pos, SpaceBefore: space}
}

func (l *Lexer) scanString(space bool) Token {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		if l.skipComment() {
			continue
		}
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos++
			return Token{Type: TokenString, Value: b.String(), Pos: start, End: l.pos, SpaceBefore: space}
		}
		b.WriteByte(ch)
		l.pos++
	}
	// An unterminated quote is invalid on its own; lexing resumes after it
	// so that the closing tags further on are still seen.
	l.pos = start + 1
	return Token{Type: TokenError, Value: `"`, Pos: start, End: l.pos, SpaceBefore: space}
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == ':'
}
