// Package config loads task files into a format-agnostic Model and turns the
// model into the task specs the scheduler distributes.
//
// Two formats are supported and may be mixed across files:
//
//   - HCL (.hcl): `variable`, `scheduler`, `task` and `request` blocks.
//     Attribute expressions can reference `var.<name>` and a small set of
//     functions (format, join, upper, lower, min, max).
//   - YAML (.yaml, .yml): the same structure as plain keys, without
//     expressions.
//
// Regions are written as literals such as "[0:1024,0:1024]" in both formats.
package config
