package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText writes results as an aligned table.
func WriteText(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "at_ms\taxis\tin\tout\tlock\t")
	for _, r := range results {
		mark := ""
		if r.Fired {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s%s\t\n", r.AtMs, r.Axis, r.In, r.Out, r.Lock, mark)
	}
	return tw.Flush()
}

// WriteJSON writes results as an indented JSON array.
func WriteJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
