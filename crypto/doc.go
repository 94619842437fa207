/*
Package crypto provides the ed25519 private keys used to sign ledger
transactions. The matching public key is a deedhouse.Credential.

Keys can be generated at random, loaded from a seed or derived from a master
seed following SLIP-0010 hardened derivation paths (eg. "m/44'/234'/0'").
*/
package crypto
