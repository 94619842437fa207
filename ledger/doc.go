/*
Package ledger implements an in-process account ledger that executes
components the way a sharded smart contract platform does.

Every account has an address, a single live access key, a balance and
optionally a deployed component (a deedhouse.Handler) that owns an exclusive
namespace of the store.

A signed transaction becomes the first receipt of a saga. Each receipt is
executed atomically: all changes made by the handler are written only if it
returns no error. Handlers talk to other accounts only by returning promises
in their result. A promise is executed later as its own receipt and its
outcome, success data or failure, is delivered back to the issuer as a
callback receipt. Nothing that was written by the issuer is rolled back when
a remote call fails, compensation is up to the callback.

Funds move together with calls. A deposit attached to a call is taken from
the issuer when the call is issued and credited to the receiver when the
call is executed. When the call fails, the deposit is returned to the
issuer.

Receipts are executed in the order they were issued. For testing concurrent
behaviour, a seeded scheduler can interleave independent receipts while
keeping the issuance order of receipts between the same pair of accounts.
*/
package ledger
