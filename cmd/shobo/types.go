package main

import (
	"github.com/shopspring/decimal"

	"github.com/jward/shobo"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLICounts is a query answer: matching operations per product name.
type CLICounts struct {
	UserID string         `json:"user_id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Counts map[string]int `json:"counts"`
}

// CLIUser is a user with their full history.
type CLIUser struct {
	ID        string         `json:"id"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Name      string         `json:"name"`
	History   []CLIOperation `json:"history"`
}

// CLIOperation is a JSON-friendly history entry.
type CLIOperation struct {
	ID          string  `json:"id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Added       bool    `json:"added"`
	Purchased   bool    `json:"purchased"`
	ReversedID  *string `json:"reversed_id,omitempty"`
}

// CLIUserIDs lists the ids of every user carrying a name. An empty list
// means no such user exists.
type CLIUserIDs struct {
	Name string   `json:"name"`
	IDs  []string `json:"ids"`
}

// CLIStats wraps shobo.Stats with the file the numbers describe.
type CLIStats struct {
	Path string `json:"path,omitempty"`
	shobo.Stats
}

// CLIWrite reports a file written by save, generate or export.
type CLIWrite struct {
	Path     string `json:"path"`
	Users    int    `json:"users"`
	ExportID string `json:"export_id,omitempty"`
}

// CLIGenerated is the result of generate: what was written and what it holds.
type CLIGenerated struct {
	CLIWrite
	Stats shobo.Stats `json:"stats"`
}

// toCLIUser converts a user handle and its history.
func toCLIUser(u *shobo.User) CLIUser {
	out := CLIUser{
		ID:        u.ID(),
		FirstName: u.FirstName(),
		LastName:  u.LastName(),
		Name:      u.Name(),
		History:   []CLIOperation{},
	}
	for op := range u.History() {
		out.History = append(out.History, CLIOperation{
			ID:          op.ID,
			ProductName: op.ProductName,
			Price:       op.Price,
			Added:       op.Kind == shobo.Added,
			Purchased:   op.Purchased,
			ReversedID:  op.ReversedID,
		})
	}
	return out
}

// purchasedValue formats a money total with two decimals.
func purchasedValue(d decimal.Decimal) string {
	return d.StringFixed(2)
}
