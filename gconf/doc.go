/*
Package gconf implements a configuration store intended to be used as a
per component, in-database configuration.

Each component keeps a single configuration object in its own store. The
configuration is loaded from the genesis options when the component is
deployed and can later be updated only by its owner, the governance identity
declared in the configuration itself.

Not being able to load a configuration is a critical condition for the
component and all handlers fail until it is provided.
*/
package gconf
