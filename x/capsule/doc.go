/*
Package capsule implements the transfer capsule component. A capsule is
deployed on the account of an asset and guards its single access key.

The asset owner initializes the capsule by a self signed call, naming the
custodian and the underwriter. The capsule registers the asset with the
custodian, which in turn installs its own credential. From then on only the
custodian can replace the access key, either installing a new credential or
reverting to the credential of the original owner.

Every key replacement is two phased. The capsule issues the key replacement
system call and records the new credential as pending. The credential is
committed only when the callback confirms that the ledger applied the
change, and rolled back otherwise.
*/
package capsule
