// Package recommend resolves bowl recommendations through a fallback
// chain that cannot come back empty.
//
// Resolution order: the primary ML source, then cached prior results
// while still fresh, then the popularity baseline, then the curated
// signature set. Each tier failure is reported to the recovery manager
// at medium severity and the resolver moves on; the signature tier is
// assembled from the catalog and cannot fail. Callers learn which tier
// served them through Source and FallbackUsed on the result.
package recommend
