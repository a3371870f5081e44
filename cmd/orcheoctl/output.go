package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// output renders command results as a table or, with --json, as
// indented JSON. Adapted from the teacher's cli.Output: same tabwriter
// table/JSON duality, collapsed into a single small file since
// orcheoctl talks to the store directly rather than an HTTP client.
type output struct {
	jsonMode bool
}

func (o *output) table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func (o *output) json(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (o *output) print(headers []string, rows [][]string, data any) {
	if o.jsonMode {
		o.json(data)
		return
	}
	o.table(headers, rows)
}
