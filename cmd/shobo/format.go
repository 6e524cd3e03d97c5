package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/jward/shobo"
)

// formatCountsText formats query counts as aligned columns sorted by product.
func formatCountsText(w io.Writer, c CLICounts) {
	if c.UserID != "" {
		fmt.Fprintf(w, "User: %s (%s)\n", c.Name, c.UserID)
	}
	if len(c.Counts) == 0 {
		fmt.Fprintln(w, "No matching operations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tCOUNT")
	for _, name := range sortedKeys(c.Counts) {
		fmt.Fprintf(tw, "%s\t%d\n", name, c.Counts[name])
	}
	tw.Flush()
}

// formatUserText formats a user and their history.
func formatUserText(w io.Writer, u CLIUser) {
	fmt.Fprintf(w, "User Name: %s\n", u.Name)
	fmt.Fprintf(w, "User ID:   %s\n", u.ID)
	if len(u.History) == 0 {
		fmt.Fprintln(w, "No history.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tPRICE\tKIND\tPURCHASED\tREVERSES")
	for _, op := range u.History {
		kind := "removed"
		if op.Added {
			kind = "added"
		}
		reverses := ""
		if op.ReversedID != nil {
			reverses = *op.ReversedID
		}
		fmt.Fprintf(tw, "%s\t%g\t%s\t%t\t%s\n", op.ProductName, op.Price, kind, op.Purchased, reverses)
	}
	tw.Flush()
}

// formatUserIDsText formats the ids found for a name, one per line.
func formatUserIDsText(w io.Writer, ids CLIUserIDs) {
	if len(ids.IDs) == 0 {
		fmt.Fprintln(w, "No such user exists.")
		return
	}
	for _, id := range ids.IDs {
		fmt.Fprintln(w, id)
	}
}

// formatStatsText formats snapshot statistics.
func formatStatsText(w io.Writer, path string, st shobo.Stats) {
	if path != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", path)
	}
	fmt.Fprintf(w, "Users:      %d\n", st.Users)
	fmt.Fprintf(w, "Operations: %d\n", st.Operations)
	fmt.Fprintf(w, "Added:      %d\n", st.Added)
	fmt.Fprintf(w, "Removed:    %d\n", st.Removed)
	fmt.Fprintf(w, "Purchased:  %d (%d%% of added, %d%% of all)\n",
		st.Purchased, st.PurchasedPctOfAdded, st.PurchasedPctOfAll)
	fmt.Fprintf(w, "Purchased value: %s\n", purchasedValue(st.PurchasedValue))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Most added:     %s\n", orNone(st.MostAdded))
	fmt.Fprintf(w, "Most removed:   %s\n", orNone(st.MostRemoved))
	fmt.Fprintf(w, "Most purchased: %s\n", orNone(st.MostPurchased))

	products := make(map[string]bool)
	for _, m := range []map[string]int{st.AddedByProduct, st.RemovedByProduct, st.PurchasedByProduct} {
		for name := range m {
			products[name] = true
		}
	}
	if len(products) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tADDED\tREMOVED\tPURCHASED")
	for _, name := range sortedKeys(products) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", name,
			st.AddedByProduct[name], st.RemovedByProduct[name], st.PurchasedByProduct[name])
	}
	tw.Flush()
}

// formatWriteText reports a written file.
func formatWriteText(w io.Writer, wr CLIWrite) {
	fmt.Fprintf(w, "Wrote %d users to %s\n", wr.Users, wr.Path)
	if wr.ExportID != "" {
		fmt.Fprintf(w, "Export ID: %s\n", wr.ExportID)
	}
}

// formatReportText formats emitted report values as KEY VALUE rows.
// Structured values are printed as compact JSON.
func formatReportText(w io.Writer, entries []shobo.ReportEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Key, reportValue(e.Value))
	}
	tw.Flush()
}

func reportValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return v
	case bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case CLICounts:
		formatCountsText(w, v)
	case CLIUser:
		formatUserText(w, v)
	case CLIUserIDs:
		formatUserIDsText(w, v)
	case CLIStats:
		formatStatsText(w, v.Path, v.Stats)
	case CLIWrite:
		formatWriteText(w, v)
	case CLIGenerated:
		formatWriteText(w, v.CLIWrite)
		fmt.Fprintln(w)
		formatStatsText(w, "", v.Stats)
	case []shobo.ReportEntry:
		formatReportText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
