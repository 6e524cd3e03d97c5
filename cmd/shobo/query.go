package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/shobo"
)

var (
	flagUserID      string
	flagUserName    string
	flagProductName string
	flagPurchased   bool
	flagAdded       bool
	flagRemoved     bool
	flagAbove       float64
	flagBelow       float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Count added, removed or purchased products",
	Long: `Count matching operations per product name.

With --user_id alone, prints the user's name and full history. With
--user_name alone, prints the ids of every user with that name. Combined with
filter flags, either narrows the count to one user (the first match for
--user_name). Without a user, counts across every user.`,
	Args: cobra.NoArgs,
	RunE: runQueryCmd,
}

func init() {
	addQueryFlags(queryCmd)
}

// addQueryFlags registers the filter and user flags on cmd.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagUserID, "user_id", "", "user id; alone, prints name and history")
	cmd.Flags().StringVar(&flagUserName, "user_name", "", "\"first last\"; alone, prints matching ids")
	cmd.Flags().StringVar(&flagProductName, "product_name", "", "exact product name")
	cmd.Flags().BoolVar(&flagPurchased, "purchased", false, "count purchased products")
	cmd.Flags().BoolVar(&flagAdded, "added", false, "count added, unpurchased products")
	cmd.Flags().BoolVar(&flagRemoved, "removed", false, "count removals (overrides --added)")
	cmd.Flags().Float64Var(&flagAbove, "above", 0, "inclusive lower price bound")
	cmd.Flags().Float64Var(&flagBelow, "below", 0, "inclusive upper price bound")
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	f, narrowed := buildFilter(cmd)

	engine, err := openEngine()
	if err != nil {
		return outputError("query", err)
	}
	q := engine.Query()

	switch {
	case flagUserID != "":
		u, err := q.UserByID(flagUserID)
		if err != nil {
			return outputError("query", err)
		}
		if !narrowed {
			return outputResult(CLIResult{Command: "query", Results: toCLIUser(u)})
		}
		counts, err := u.Query(f)
		if err != nil {
			return outputError("query", err)
		}
		return outputResult(CLIResult{
			Command: "query",
			Results: CLICounts{UserID: u.ID(), Name: u.Name(), Counts: counts},
		})

	case flagUserName != "":
		users := q.UserByName(flagUserName)
		if !narrowed || len(users) == 0 {
			ids := make([]string, len(users))
			for i, u := range users {
				ids[i] = u.ID()
			}
			total := len(ids)
			return outputResult(CLIResult{
				Command:    "query",
				Results:    CLIUserIDs{Name: flagUserName, IDs: ids},
				TotalCount: &total,
			})
		}
		u := users[0]
		counts, err := u.Query(f)
		if err != nil {
			return outputError("query", err)
		}
		return outputResult(CLIResult{
			Command: "query",
			Results: CLICounts{UserID: u.ID(), Name: u.Name(), Counts: counts},
		})
	}

	counts, err := q.Query(f)
	if err != nil {
		return outputError("query", err)
	}
	return outputResult(CLIResult{Command: "query", Results: CLICounts{Counts: counts}})
}

// buildFilter turns the query flags into a Filter. narrowed reports whether
// any filter flag was given, which switches the user modes from lookup to
// counting.
func buildFilter(cmd *cobra.Command) (f shobo.Filter, narrowed bool) {
	flags := cmd.Flags()
	f.Purchased = flagPurchased
	f.Added = flagAdded && !flagRemoved
	if flags.Changed("above") {
		v := flagAbove
		f.PriceAbove = &v
	}
	if flags.Changed("below") {
		v := flagBelow
		f.PriceBelow = &v
	}
	if flags.Changed("product_name") {
		v := flagProductName
		f.ProductName = &v
	}
	narrowed = flagPurchased || flagAdded || flagRemoved ||
		f.PriceAbove != nil || f.PriceBelow != nil || f.ProductName != nil
	return f, narrowed
}

// --- Output ---

// outputResult writes a CLIResult in the selected format to stdout.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
