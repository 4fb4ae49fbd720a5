// Package menu defines the ordering domain model: ingredients, the
// composable bowl, cart items, and the catalog they resolve against.
//
// A Bowl is mutated by discrete per-category operations. Single-select
// categories (base, protein, sauce, garnish) replace on select;
// multi-select categories (sides, extra sides, extra protein) append up
// to their cap. Weight, price and allergens are always derived from the
// current composition, never stored.
//
// The catalog and the curated signature-bowl set load from YAML files
// shipped with the widget backend.
package menu
