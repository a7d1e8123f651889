// Package verify resolves callout properties authoritatively by evaluating
// the CSS cascade against an isolated copy of the host's document structure.
//
// The Resolver builds, once, a small HTML tree that mirrors the ancestors a
// real callout has in the host (body, workspace containers, the markdown
// view) so that rules scoped by ancestor classes, such as .theme-dark, apply
// exactly as they would in the live view. Copies of the host's stylesheets
// are kept in the tree's head and reconciled by position on ReloadStyles.
//
// Properties sets data-callout on the target element and computes the
// --callout-icon and --callout-color custom properties. The evaluator
// supports what those properties need: selector matching (cascadia),
// specificity and source order, !important, inheritance, var() with
// fallbacks, and @media (prefers-color-scheme). Rules with pseudo-elements
// or selectors cascadia cannot parse are ignored.
package verify
