package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// FormatJSON converts data to pretty-printed JSON with 2-space indentation.
func FormatJSON(data interface{}) (string, error) {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Field is one row of a key/value listing.
type Field struct {
	Name  string
	Value string
}

// FprintFields writes fields as aligned "Name:  value" rows, skipping
// empty values.
func FprintFields(w io.Writer, fields []Field) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", f.Name, f.Value)
	}
	return tw.Flush()
}
