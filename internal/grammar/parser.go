// Package grammar parses record files.
//
// A record file is a tiny fixed markup language:
//
//	document := '<record>' boolean* list '</record>'
//	boolean  := '<boolean id="ID" value="VALUE"/>'
//	list     := '<list id="maps">' record* '</list>'
//	record   := '<record from="PATH" to="PATH"/>'
//
// Whitespace between tokens is free, and comments (<!-- ... -->) are ignored
// everywhere, including in the middle of names and values.
package grammar

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Boolean is a raw boolean declaration. Judging the identifier and value is
// left to the caller.
type Boolean struct {
	ID    string
	Value string
	Pos   int
}

// Element is one record element. Start and End are byte offsets of the
// element in the parsed text; End includes trailing whitespace so that
// cutting [Start, End) removes the element cleanly.
type Element struct {
	From  string
	To    string
	Start int
	End   int
}

// File is the result of parsing a record file.
type File struct {
	Booleans []Boolean
	Records  []Element
}

// StructureError reports a broken <record> or <list> wrapper.
type StructureError struct {
	Element string // "record" or "list"
	Pos     int
	Snippet string
}

func (e *StructureError) Error() string {
	if e.Element == "list" {
		return fmt.Sprintf("the list tag is not correct:\n%s", e.Snippet)
	}
	return fmt.Sprintf("contents must be inside a <record> tag; make sure there is nothing before or after the record tags:\n%s", e.Snippet)
}

// RecordError reports a fragment in the record list that is not a record
// element. Line is 1-based; Column counts the characters before the fragment
// on its line.
type RecordError struct {
	Line    int
	Column  int
	Pos     int
	Snippet string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("something wrong in record starting from [%d:%d]:\n%s", e.Line, e.Column, e.Snippet)
}

// SnippetLength is how much of the offending text errors quote.
const SnippetLength = 100

// Parser parses a token stream into a File.
type Parser struct {
	src    string
	tokens []Token
	pos    int
	limit  int
}

// Parse parses record file text.
func Parse(src string) (*File, error) {
	p := &Parser{src: src, tokens: NewLexer(src).Tokens()}
	return p.parseDocument()
}

func (p *Parser) parseDocument() (*File, error) {
	// Exclude EOF.
	n := len(p.tokens) - 1

	if !p.matchAt(0, TokenLAngle, TokenIdent, TokenRAngle) || p.tokens[1].Value != "record" ||
		!p.closesWith(n, "record") {
		return nil, p.structureError("record", 0)
	}
	p.pos = 3
	p.limit = n - 4

	file := &File{}
	for {
		b, ok := p.parseBoolean()
		if !ok {
			break
		}
		file.Booleans = append(file.Booleans, b)
	}

	listStart := p.tokens[p.pos].Pos
	if !p.parseListOpen() || !p.closesWith(p.limit, "list") {
		return nil, p.structureError("list", listStart)
	}
	p.limit -= 4

	for p.pos < p.limit {
		el, err := p.parseRecord()
		if err != nil {
			return nil, err
		}
		file.Records = append(file.Records, el)
	}
	return file, nil
}

// matchAt reports whether the tokens starting at i have the given types and
// lie before the current limit (when one is set).
func (p *Parser) matchAt(i int, types ...TokenType) bool {
	end := len(p.tokens)
	if p.limit > 0 {
		end = p.limit
	}
	if i < 0 || i+len(types) > end {
		return false
	}
	for k, t := range types {
		if p.tokens[i+k].Type != t {
			return false
		}
	}
	return true
}

// closesWith reports whether the tokens ending right before end spell </name>.
func (p *Parser) closesWith(end int, name string) bool {
	start := end - 4
	if start < p.pos {
		return false
	}
	t := p.tokens[start:end]
	return t[0].Type == TokenLAngle && t[1].Type == TokenSlash &&
		t[2].Type == TokenIdent && t[2].Value == name && t[3].Type == TokenRAngle
}

// attr matches: name = "value", with whitespace before name.
func (p *Parser) attr(i int, name string) (string, bool) {
	if !p.matchAt(i, TokenIdent, TokenEquals, TokenString) {
		return "", false
	}
	if p.tokens[i].Value != name || !p.tokens[i].SpaceBefore {
		return "", false
	}
	return p.tokens[i+2].Value, true
}

// selfClose matches: / >
func (p *Parser) selfClose(i int) bool {
	return p.matchAt(i, TokenSlash, TokenRAngle)
}

func (p *Parser) parseBoolean() (Boolean, bool) {
	i := p.pos
	if !p.matchAt(i, TokenLAngle, TokenIdent) || p.tokens[i+1].Value != "boolean" {
		return Boolean{}, false
	}
	id, ok := p.attr(i+2, "id")
	if !ok {
		return Boolean{}, false
	}
	value, ok := p.attr(i+5, "value")
	if !ok || !p.selfClose(i+8) {
		return Boolean{}, false
	}
	p.pos = i + 10
	return Boolean{ID: id, Value: value, Pos: p.tokens[i].Pos}, true
}

func (p *Parser) parseListOpen() bool {
	i := p.pos
	if !p.matchAt(i, TokenLAngle, TokenIdent) || p.tokens[i+1].Value != "list" {
		return false
	}
	id, ok := p.attr(i+2, "id")
	if !ok || id != "maps" || !p.matchAt(i+5, TokenRAngle) {
		return false
	}
	p.pos = i + 6
	return true
}

func (p *Parser) parseRecord() (Element, error) {
	i := p.pos
	if !p.matchAt(i, TokenLAngle, TokenIdent) || p.tokens[i+1].Value != "record" {
		return Element{}, p.recordError(i)
	}
	from, ok := p.attr(i+2, "from")
	if !ok {
		return Element{}, p.recordError(i)
	}
	to, ok := p.attr(i+5, "to")
	if !ok || !p.selfClose(i+8) {
		return Element{}, p.recordError(i)
	}
	p.pos = i + 10
	return Element{
		From:  from,
		To:    to,
		Start: p.tokens[i].Pos,
		End:   p.trailingSpaceEnd(p.tokens[i+9].End),
	}, nil
}

// trailingSpaceEnd extends end over following whitespace.
func (p *Parser) trailingSpaceEnd(end int) int {
	rest := p.src[end:]
	return end + len(rest) - len(strings.TrimLeft(rest, " \t\r\n\f\v"))
}

func (p *Parser) structureError(element string, pos int) error {
	return &StructureError{
		Element: element,
		Pos:     pos,
		Snippet: Snippet(StripComments(p.src[pos:]), SnippetLength),
	}
}

func (p *Parser) recordError(i int) error {
	pos := p.tokens[i].Pos
	line, col := Position(p.src, pos)
	return &RecordError{
		Line:    line,
		Column:  col,
		Pos:     pos,
		Snippet: Snippet(StripComments(p.src[pos:]), SnippetLength),
	}
}

var commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// StripComments removes all terminated comments and surrounding whitespace.
func StripComments(s string) string {
	return strings.TrimSpace(commentPattern.ReplaceAllString(s, ""))
}

// Snippet returns at most n characters of s, marking truncation.
func Snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// Position converts a byte offset in src to a 1-based line and the number
// of characters before the offset on that line.
func Position(src string, pos int) (line, column int) {
	if pos > len(src) {
		pos = len(src)
	}
	before := src[:pos]
	line = strings.Count(before, "\n") + 1
	lastLine := before[strings.LastIndexByte(before, '\n')+1:]
	return line, utf8.RuneCountInString(lastLine)
}
