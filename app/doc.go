/*
Package app contains the building blocks of a component: a Router that
dispatches messages to handlers by their path and a chain of decorators that
wraps the router with common functionality like logging and panic recovery.

A component deployed to a ledger account is usually built like this:

  r := app.NewRouter()
  auction.RegisterRoutes(r)
  h := app.ChainDecorators(
    app.NewLogging(),
    app.NewRecovery(),
  ).WithHandler(r)
*/
package app
