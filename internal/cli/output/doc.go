// Package output renders CLI results as a table, JSON or YAML.
//
// Tables for a single struct list one field per row, nested structs are
// flattened with dotted names. Slices of structs render one row per
// element.
package output
