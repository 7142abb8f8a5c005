package tagging

import "strings"

// OtherCategory is used for anything the model returns outside Categories.
const OtherCategory = "Other"

// Categories are the tags the model may assign.
var Categories = []string{
	"Groceries",
	"Restaurants",
	"Coffee",
	"Gas",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Subscriptions",
	"Utilities",
	"Rent",
	"Insurance",
	"Healthcare",
	"Travel",
	"Personal Care",
	"Education",
	"Loan Payment",
	"Transfer",
	"Income",
	"Fees",
	OtherCategory,
}

var categoryIndex = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// NormalizeCategory returns the canonical spelling of c, or OtherCategory.
func NormalizeCategory(c string) string {
	if canon, ok := categoryIndex[strings.ToLower(strings.TrimSpace(c))]; ok {
		return canon
	}
	return OtherCategory
}
