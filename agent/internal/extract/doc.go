// Package extract turns raw stylesheet text into callout IDs and, on the
// fast path, into display properties.
//
// CalloutIDs scans for attribute selectors on the data-callout hook:
//
//	[data-callout="id"]    exact match, double quoted
//	[data-callout^='id']   prefix match, single quoted
//	[data-callout=id i]    unquoted, case flag accepted and ignored
//
// Other operators (*=, ~=, |=, $=) do not define callouts and are skipped.
// Occurrences that cannot be parsed are skipped as well; MalformedCount
// reports how many loose mentions the strict pass could not use.
//
// FastProperties reads --callout-color and --callout-icon from the first
// rule block whose selector names the callout. NeedsVerification reports
// when that answer is too uncertain to use without asking the verifier.
package extract
