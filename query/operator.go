package query

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/thisisjab/docquery/fault"
)

// Operator is a comparison token understood by the database server.
type Operator string

const (
	OpEq           Operator = "="
	OpStrictEq     Operator = "==="
	OpLooseEq      Operator = "=="
	OpNe           Operator = "!="
	OpStrictNe     Operator = "!=="
	OpLooseNe      Operator = "<>"
	OpGt           Operator = ">"
	OpGte          Operator = ">="
	OpLt           Operator = "<"
	OpLte          Operator = "<="
	OpLike         Operator = "LIKE"
	OpLikeLower    Operator = "like"
	OpNotLike      Operator = "NOT LIKE"
	OpNotLikeLower Operator = "not like"
	OpIn           Operator = "IN"
	OpInLower      Operator = "in"
	OpNotIn        Operator = "NOT IN"
	OpNotInLower   Operator = "not in"
	OpContains     Operator = "CONTAINS"
	OpContainsLow  Operator = "contains"
	OpNotContains  Operator = "NOT CONTAINS"
	OpNotContLower Operator = "not contains"
	OpBetween      Operator = "BETWEEN"
	OpBetweenLower Operator = "between"
	OpNotBetween   Operator = "NOT BETWEEN"
	OpNotBetLower  Operator = "not between"
	OpExists       Operator = "EXISTS"
	OpExistsLower  Operator = "exists"
)

// ValueKind is the shape of value an operator accepts.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	// KindAny accepts every value, including nil.
	KindAny
	KindNumber
	KindString
	// KindList accepts any slice or array.
	KindList
	// KindRange accepts a two-element list of numbers.
	KindRange
	KindBool
)

func (k ValueKind) String() string {
	return [...]string{"invalid", "any", "number", "string", "list", "range", "boolean"}[k]
}

var catalog = map[Operator]ValueKind{
	OpEq:           KindAny,
	OpStrictEq:     KindAny,
	OpLooseEq:      KindAny,
	OpNe:           KindAny,
	OpStrictNe:     KindAny,
	OpLooseNe:      KindAny,
	OpGt:           KindNumber,
	OpGte:          KindNumber,
	OpLt:           KindNumber,
	OpLte:          KindNumber,
	OpLike:         KindString,
	OpLikeLower:    KindString,
	OpNotLike:      KindString,
	OpNotLikeLower: KindString,
	OpIn:           KindList,
	OpInLower:      KindList,
	OpNotIn:        KindList,
	OpNotInLower:   KindList,
	OpContains:     KindString,
	OpContainsLow:  KindString,
	OpNotContains:  KindString,
	OpNotContLower: KindString,
	OpBetween:      KindRange,
	OpBetweenLower: KindRange,
	OpNotBetween:   KindRange,
	OpNotBetLower:  KindRange,
	OpExists:       KindBool,
	OpExistsLower:  KindBool,
}

// Operators returns every operator in the catalog.
func Operators() []Operator {
	ops := make([]Operator, 0, len(catalog))
	for op := range catalog {
		ops = append(ops, op)
	}
	return ops
}

// ParseOperator returns the catalog operator spelled exactly as s.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fault.New(fault.BadInputCode, fmt.Sprintf("unknown operator %q", s))
	}
	return op, nil
}

func (op Operator) Valid() bool {
	_, ok := catalog[op]
	return ok
}

// Kind returns the value kind op accepts, or KindInvalid for unknown operators.
func (op Operator) Kind() ValueKind {
	return catalog[op]
}

// Check reports whether value may be used with op.
func (op Operator) Check(value any) error {
	kind := op.Kind()
	if kind == KindInvalid {
		return fault.New(fault.BadInputCode, fmt.Sprintf("unknown operator %q", string(op)))
	}

	if kindMatches(kind, value) {
		return nil
	}

	return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{
		string(op): []string{fmt.Sprintf("Expected a %s value, got %T.", kind, value)},
	})
}

func kindMatches(kind ValueKind, value any) bool {
	switch kind {
	case KindAny:
		return true
	case KindNumber:
		return isNumber(value)
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindList:
		return isList(value)
	case KindRange:
		if !isList(value) {
			return false
		}
		v := reflect.ValueOf(value)
		if v.Len() != 2 {
			return false
		}
		return isNumber(v.Index(0).Interface()) && isNumber(v.Index(1).Interface())
	default:
		return false
	}
}

func isNumber(value any) bool {
	if _, ok := value.(json.Number); ok {
		return true
	}
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	k := reflect.TypeOf(value).Kind()
	return k == reflect.Slice || k == reflect.Array
}
