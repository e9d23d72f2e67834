package reclaim

import "errors"

var (
	// ErrIdentityMismatch is returned when the loaded signing key's public
	// key differs from the wallet the run targets. Checked before any
	// network write and before the confirmation gate.
	ErrIdentityMismatch = errors.New("signing identity does not match target wallet")

	// ErrScanFailed wraps scan-phase RPC failures. These are fatal: a failed
	// scan has no partial progress worth keeping.
	ErrScanFailed = errors.New("token account scan failed")
)
