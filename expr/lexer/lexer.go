package lexer

import (
	"strings"

	"github.com/thisisjab/docquery/expr/token"
)

type Lexer struct {
	input   []rune
	pos     int  // position of the current character in the input string
	readPos int  // position of the next character to be read
	char    rune // current character being processed
}

var keywords = map[string]token.TokenType{
	"null":  token.NULL,
	"true":  token.TRUE,
	"false": token.FALSE,
}

func New(input string) *Lexer {
	l := &Lexer{[]rune(input), 0, 0, 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	l.skipWhitespace()

	switch l.char {
	case '=':
		switch {
		case l.peekChar() == '=' && l.peekAt(1) == '=':
			l.readChar()
			l.readChar()
			tok = token.Token{Type: token.STRICTEQUAL, Literal: "==="}
		case l.peekChar() == '=':
			l.readChar()
			tok = token.Token{Type: token.LOOSEEQUAL, Literal: "=="}
		default:
			tok = token.Token{Type: token.EQUAL, Literal: "="}
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LESSEQUAL, Literal: "<="}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.LESSGREATER, Literal: "<>"}
		default:
			tok = token.Token{Type: token.LESS, Literal: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GREATEREQUAL, Literal: ">="}
		} else {
			tok = token.Token{Type: token.GREATER, Literal: ">"}
		}
	case '!':
		switch {
		case l.peekChar() == '=' && l.peekAt(1) == '=':
			l.readChar()
			l.readChar()
			tok = token.Token{Type: token.STRICTNOTEQUAL, Literal: "!=="}
		case l.peekChar() == '=':
			l.readChar()
			tok = token.Token{Type: token.NOTEQUAL, Literal: "!="}
		default:
			tok = token.Token{Type: token.ILLEGAL, Literal: "!"}
		}
	case ',':
		tok = token.Token{Type: token.COMMA, Literal: ","}
	case '(':
		tok = token.Token{Type: token.LPAREN, Literal: "("}
	case ')':
		tok = token.Token{Type: token.RPAREN, Literal: ")"}
	case '[':
		tok = token.Token{Type: token.LBRACKET, Literal: "["}
	case ']':
		tok = token.Token{Type: token.RBRACKET, Literal: "]"}
	case '-':
		tok = token.Token{Type: token.MINUS, Literal: "-"}
	case 0:
		tok = token.Token{Type: token.EOF, Literal: ""}
	case '"', '\'':
		literal, ok := l.readQuotedString(l.char)
		if !ok {
			tok = token.Token{Type: token.ILLEGAL, Literal: literal}
		} else {
			tok = token.Token{Type: token.STRING, Literal: literal}
		}
	default:
		if isLetter(l.char) {
			return l.readIdentifier()
		} else if isDigit(l.char) {
			return l.readPossibleNumber()
		} else {
			tok = token.Token{Type: token.ILLEGAL, Literal: string(l.char)}
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) peekAt(offset int) rune {
	i := l.readPos + offset
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) readIdentifier() token.Token {
	pos := l.pos

	for {
		// Stop at a boundary: space, comma, EOF, or an operator (=, <, [, etc.)
		if l.char == 0 || isWhitespace(l.char) || l.char == ',' || isOperator(l.char) {
			break
		}
		l.readChar()
	}

	literal := string(l.input[pos:l.pos])

	return token.Token{Type: l.lookupIdent(literal), Literal: literal}
}

func (l *Lexer) lookupIdent(ident string) token.TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return token.IDENT
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' || r == '.' || r == '-' || r == '%' || r == '@'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (l *Lexer) skipWhitespace() {
	for isWhitespace(l.char) {
		l.readChar()
	}
}

func (l *Lexer) readPossibleNumber() token.Token {
	pos := l.pos
	hasDot := false
	isPureNumber := true

	for {
		if isDigit(l.char) {
			l.readChar()
		} else if l.char == '.' {
			if hasDot { // Second dot? It's not a valid float, treat as string
				isPureNumber = false
			}
			hasDot = true
			l.readChar()
		} else if l.char == ',' || isWhitespace(l.char) || l.char == 0 || isOperator(l.char) {
			break
		} else {
			// Dates like 2016-12-20 and other mixed literals are plain strings.
			isPureNumber = false
			l.readChar()
		}
	}

	literal := string(l.input[pos:l.pos])

	if !isPureNumber {
		return token.Token{Type: token.STRING, Literal: literal}
	}
	if hasDot {
		return token.Token{Type: token.DECIMAL, Literal: literal}
	}
	return token.Token{Type: token.INT, Literal: literal}
}

// readQuotedString reads up to the matching quote. A backslash escapes the
// next character. ok is false when the input ends before the closing quote.
func (l *Lexer) readQuotedString(quote rune) (string, bool) {
	var sb strings.Builder

	for {
		l.readChar()
		switch l.char {
		case 0:
			return sb.String(), false
		case quote:
			return sb.String(), true
		case '\\':
			if l.peekChar() != 0 {
				l.readChar()
			}
			sb.WriteRune(l.char)
		default:
			sb.WriteRune(l.char)
		}
	}
}

func isOperator(r rune) bool {
	return r == '=' || r == '!' || r == '(' || r == ')' || r == '[' || r == ']' || r == '<' || r == '>'
}
