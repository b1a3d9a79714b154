package cli

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/fatih/color"
)

func jsonIndent(buf *bytes.Buffer, raw []byte) error {
	return json.Indent(buf, raw, "", "  ")
}

// printList writes list results as one JSON array.
func printList(w io.Writer, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	return printJSON(w, raw)
}

// PrintError writes err the way every docquery command reports failures.
func PrintError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprint(w, "error: ") //nolint:errcheck
	color.New(color.FgRed).Fprintln(w, err.Error())         //nolint:errcheck
}
