// Package license implements the authoritative lease table for the
// leasegate server.
//
// # Architecture Overview
//
// The package consists of three components:
//
//	- Table: the in-memory holder registry with atomic check-and-set issue
//	- Record: the per-holder lease state with explicit transitions
//	- KeyAuthenticator: pluggable credential derivation and matching
//
// # Lease Issue Flow
//
// A request for a holder proceeds through these steps, all under the
// table lock so no two concurrent requests can both observe "not leased"
// and both issue:
//
//	1. Unknown holder  -> OutcomeNotFound
//	2. Bad credential  -> OutcomeInvalidKey
//	3. Free or expired -> mark leased, stamp expiry, OutcomeIssued
//	4. Otherwise       -> OutcomeAlreadyInUse with the existing expiry
//
// Expired leases are additionally reclaimed by a background ticker owned
// by the table, so a holder whose client went away becomes available
// again without waiting for the next request.
package license
