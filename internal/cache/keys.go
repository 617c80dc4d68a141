package cache

import "strings"

const prefix = "orderdesk:"

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// KeyPrice returns the key for a priced item within a company.
func KeyPrice(company, customerNo, itemNo string) string {
	return prefix + "price:" + norm(company) + ":" + norm(customerNo) + ":" + norm(itemNo)
}

// KeyShipping returns the key for a company's shipping metadata.
func KeyShipping(company string) string {
	return prefix + "shipping:" + norm(company)
}

