package variant

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// maxDepth caps list nesting during Decode. The host never produces arrays
// deeper than a handful of levels; the cap guards against malformed input.
const maxDepth = 32

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLParen
	tokenRParen
	tokenComma
	tokenSymbol
	tokenString
)

type token struct {
	typ    tokenType
	value  string
	offset int
}

// lexer tokenizes the Array(...) text form from an io.Reader.
type lexer struct {
	reader *bufio.Reader
	peeked *rune
	offset int
}

func newLexer(r io.Reader) *lexer {
	return &lexer{reader: bufio.NewReader(r)}
}

func (l *lexer) next() (token, error) {
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return token{typ: tokenEOF, offset: l.offset}, nil
			}
			return token{}, err
		}
		if unicode.IsSpace(ch) {
			l.read()
			continue
		}
		break
	}

	start := l.offset
	ch, err := l.peek()
	if err != nil {
		if err == io.EOF {
			return token{typ: tokenEOF, offset: start}, nil
		}
		return token{}, err
	}

	switch ch {
	case '(':
		l.read()
		return token{typ: tokenLParen, value: "(", offset: start}, nil
	case ')':
		l.read()
		return token{typ: tokenRParen, value: ")", offset: start}, nil
	case ',':
		l.read()
		return token{typ: tokenComma, value: ",", offset: start}, nil
	case '"':
		return l.readString(start)
	default:
		return l.readSymbol(start)
	}
}

func (l *lexer) peek() (rune, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return 0, err
	}
	l.peeked = &ch
	return ch, nil
}

func (l *lexer) read() (rune, error) {
	if l.peeked != nil {
		ch := *l.peeked
		l.peeked = nil
		l.offset++
		return ch, nil
	}
	ch, _, err := l.reader.ReadRune()
	if err == nil {
		l.offset++
	}
	return ch, err
}

func (l *lexer) readString(start int) (token, error) {
	l.read() // opening quote

	var result []rune
	for {
		ch, err := l.read()
		if err != nil {
			if err == io.EOF {
				return token{}, fmt.Errorf("variant: unterminated string at offset %d", start)
			}
			return token{}, err
		}
		if ch == '"' {
			break
		}
		if ch == '\\' {
			next, err := l.read()
			if err != nil {
				return token{}, fmt.Errorf("variant: unterminated escape at offset %d", start)
			}
			switch next {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '\\':
				result = append(result, '\\')
			case '"':
				result = append(result, '"')
			default:
				result = append(result, next)
			}
			continue
		}
		result = append(result, ch)
	}
	return token{typ: tokenString, value: string(result), offset: start}, nil
}

func (l *lexer) readSymbol(start int) (token, error) {
	var result []rune
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return token{}, err
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == ',' || ch == '"' {
			break
		}
		l.read()
		result = append(result, ch)
	}
	if len(result) == 0 {
		return token{}, fmt.Errorf("variant: empty symbol at offset %d", start)
	}
	return token{typ: tokenSymbol, value: string(result), offset: start}, nil
}

// Decode parses the Array(...) text form into a Value tree.
func Decode(r io.Reader) (*Value, error) {
	p := &parser{lex: newLexer(r)}
	v, err := p.parseValue(0)
	if err != nil {
		return nil, err
	}
	trailing, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if trailing.typ != tokenEOF {
		return nil, fmt.Errorf("variant: trailing input at offset %d", trailing.offset)
	}
	return v, nil
}

// DecodeString parses the Array(...) text form from a string.
func DecodeString(s string) (*Value, error) {
	return Decode(strings.NewReader(s))
}

type parser struct {
	lex    *lexer
	pushed *token
}

func (p *parser) nextToken() (token, error) {
	if p.pushed != nil {
		tok := *p.pushed
		p.pushed = nil
		return tok, nil
	}
	return p.lex.next()
}

func (p *parser) pushBack(tok token) {
	p.pushed = &tok
}

func (p *parser) parseValue(depth int) (*Value, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	switch tok.typ {
	case tokenString:
		return Str(tok.value), nil
	case tokenSymbol:
		return p.parseSymbol(tok, depth)
	case tokenEOF:
		return nil, fmt.Errorf("variant: unexpected end of input at offset %d", tok.offset)
	default:
		return nil, fmt.Errorf("variant: unexpected %q at offset %d", tok.value, tok.offset)
	}
}

func (p *parser) parseSymbol(tok token, depth int) (*Value, error) {
	switch tok.value {
	case "Array":
		return p.parseArray(tok, depth)
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	}
	f, err := strconv.ParseFloat(tok.value, 64)
	if err != nil {
		return nil, fmt.Errorf("variant: invalid atom %q at offset %d", tok.value, tok.offset)
	}
	return Num(f), nil
}

func (p *parser) parseArray(head token, depth int) (*Value, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("variant: nesting exceeds %d levels at offset %d", maxDepth, head.offset)
	}
	open, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if open.typ != tokenLParen {
		return nil, fmt.Errorf("variant: expected '(' after Array at offset %d", open.offset)
	}

	var items []*Value
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.typ {
		case tokenRParen:
			return List(items...), nil
		case tokenEOF:
			return nil, fmt.Errorf("variant: missing ')' for Array at offset %d", head.offset)
		case tokenComma:
			if len(items) == 0 {
				return nil, fmt.Errorf("variant: unexpected ',' at offset %d", tok.offset)
			}
			continue
		default:
			p.pushBack(tok)
			item, err := p.parseValue(depth + 1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
}
