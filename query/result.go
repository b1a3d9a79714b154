package query

import (
	"encoding/json"
	"fmt"

	"github.com/thisisjab/docquery/fault"
)

// As decodes the result of a terminal call into T:
//
//	users, err := query.As[[]User](db.Query().From("users").Fetch(ctx))
func As[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}

	if len(raw) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fault.New(fault.DecodeCode, fmt.Sprintf("cannot decode result into %T", out)).WithOriginal(err)
	}

	return out, nil
}

// AsList decodes every item returned by List into T.
func AsList[T any](items []json.RawMessage, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}

	out := make([]T, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, fault.New(fault.DecodeCode, fmt.Sprintf("cannot decode list item %d into %T", i, out[i])).WithOriginal(err)
		}
	}

	return out, nil
}
