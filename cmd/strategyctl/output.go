package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Output writes either human readable text or JSON to the command's stdout.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates an Output honoring the --json flag.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{writer: cmd.OutOrStdout(), jsonMode: jsonMode}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Table is a column aligned listing.
type Table struct {
	tw *tabwriter.Writer
}

// NewTable starts a table and writes its header row.
func NewTable(o *Output, headers ...string) *Table {
	t := &Table{tw: tabwriter.NewWriter(o.writer, 0, 0, 2, ' ', 0)}
	t.AddRow(headers...)
	return t
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

// Render flushes the table.
func (t *Table) Render() {
	_ = t.tw.Flush()
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
