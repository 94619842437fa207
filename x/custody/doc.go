/*
Package custody implements the custodian. The custodian keeps a custody
record for every asset whose capsule registered with it and is the only
party that can replace the access key of such an asset.

A record is created in the Locking state when the capsule registers. The
custodian then installs its own credential on the capsule and the record
becomes Held once the capsule confirmed the key replacement. A held asset
is released either to the winner of an auction (close, issued by the
coordinator) or back to its owner (revert, issued by the underwriter or by
the coordinator on its behalf). While the capsule confirms a release the
record is Releasing. A confirmed release deletes the record, a failed one
returns it to Held.
*/
package custody
