/*
Package auction implements the auction coordinator.

An underwriter of an asset held by the custodian can open an auction. The
coordinator first asks the custodian who the underwriter of the asset is and
creates the auction only if it matches the caller. Between the check and the
creation custody can change: the coordinator does not lock the custody
record.

Two modes are supported. In the open mode every bid is the attached
deposit. In the sealed mode bidders submit a commitment of the amount and a
secret salt and reveal it after the auction was closed, attaching the true
amount. Revealed amounts are kept in an ordered index so the highest one can
be found without scanning all bids. Equal revealed amounts are ordered by
reveal time, the earliest reveal wins.

Finalizing an auction refunds the losing bids minus a flat fee and asks the
custodian to release the asset to the winner. The price is forwarded to the
underwriter only once the custodian confirmed the release. If the release
fails, the winner is refunded.
*/
package auction
