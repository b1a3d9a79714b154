package token

const (
	ILLEGAL TokenType = iota
	EOF

	// Identifiers + literals
	IDENT
	INT
	DECIMAL
	STRING
	NULL
	TRUE
	FALSE

	// Delimiters
	COMMA
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET

	// Symbolic operators
	EQUAL          // =
	LOOSEEQUAL     // ==
	STRICTEQUAL    // ===
	NOTEQUAL       // !=
	STRICTNOTEQUAL // !==
	LESSGREATER    // <>
	LESS
	LESSEQUAL
	GREATER
	GREATEREQUAL
	MINUS
)

type TokenType int

type Token struct {
	Type    TokenType
	Literal string
}

// IsOperator reports whether t is one of the symbolic comparison operators.
func (t TokenType) IsOperator() bool {
	return t >= EQUAL && t <= GREATEREQUAL
}
