/*
Package deedhouse defines interfaces used throughout the auction house, such
as storage, messages, handlers and the results they return to the ledger.
It also contains helpers to work with addresses, credentials and the
execution context of a remote call.

Look into this package to get a brief overview of how components are built
and how they talk to each other through promises and callbacks.
*/
package deedhouse
