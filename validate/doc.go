// Package validate implements the bowl and cart validators.
//
// Validation is pure: the same composition always yields the same
// result, and validating never mutates the bowl or cart. Components
// call the validators repeatedly as the user edits, so results carry
// everything the presentation layer needs (warnings, errors, totals) in
// one pass.
//
// Blocking errors prevent the flow from advancing (cart review,
// checkout); non-blocking errors and warnings never do. Weight over the
// hard ceiling blocks checkout only, never further editing.
package validate
