package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/cli-runtime/pkg/printers"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

const none = "<none>"

// newTable builds a table with string columns
func newTable(headers []string, rows [][]interface{}) *metav1.Table {
	columns := make([]metav1.TableColumnDefinition, 0, len(headers))
	for _, h := range headers {
		columns = append(columns, metav1.TableColumnDefinition{Name: h, Type: "string"})
	}

	tableRows := make([]metav1.TableRow, 0, len(rows))
	for _, cells := range rows {
		tableRows = append(tableRows, metav1.TableRow{Cells: cells})
	}

	return &metav1.Table{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Table",
			APIVersion: "meta.k8s.io/v1",
		},
		ColumnDefinitions: columns,
		Rows:              tableRows,
	}
}

// field is one row of a detail table
type field struct {
	name  string
	value interface{}
}

// detailTable renders a single object as a two column table
func detailTable(fields []field) *metav1.Table {
	rows := make([][]interface{}, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []interface{}{f.name, display(f.value)})
	}
	return newTable([]string{"FIELD", "VALUE"}, rows)
}

// mapFields turns a map into detail rows sorted by key
func mapFields(m map[string]interface{}) []field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, field{name: k, value: m[k]})
	}
	return fields
}

func display(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return none
	case string:
		if t == "" {
			return none
		}
		return t
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}, []interface{}, []string:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// printTable prints a table using the table printer
func printTable(table *metav1.Table, out io.Writer) error {
	printer := printers.NewTablePrinter(printers.PrintOptions{})
	return printer.PrintObj(table, out)
}

func printJSON(v interface{}, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON under --json and the table otherwise. table is
// only called for table output.
func (s *state) render(cmd *cobra.Command, v interface{}, table func() *metav1.Table) error {
	if vantage.OutputOptions(cmd.Context()).JSON {
		return printJSON(v, cmd.OutOrStdout())
	}
	return printTable(table(), cmd.OutOrStdout())
}

// renderEmpty prints an empty JSON list or a message for empty results
func (s *state) renderEmpty(cmd *cobra.Command, message string) error {
	if vantage.OutputOptions(cmd.Context()).JSON {
		return printJSON([]interface{}{}, cmd.OutOrStdout())
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), message)
	return err
}

// message prints a confirmation line, or a JSON object carrying it
func (s *state) message(cmd *cobra.Command, text string, extra map[string]interface{}) error {
	if vantage.OutputOptions(cmd.Context()).JSON {
		out := map[string]interface{}{"message": text}
		for k, v := range extra {
			out[k] = v
		}
		return printJSON(out, cmd.OutOrStdout())
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
