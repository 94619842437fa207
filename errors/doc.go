/*
Package errors implements custom error interfaces for deedhouse.

The idea is to reuse as many errors from this package as possible and define
custom package errors only when absolutely necessary.

If you want to register a custom error, use Register(code, description).
For reusing errors use ErrXyz.New and ErrXyz.Newf or the Wrap function.

Errors from this package map directly to the failure classes of the
coordination protocol:

	ErrUnauthorized  caller identity is not allowed to run the operation
	ErrNotFound      asset, bid or record is absent
	ErrState         operation attempted outside of its phase window
	ErrConflict      duplicated registration or an auction already running
	ErrMismatch      a reveal does not match its commitment
	ErrAmount        zero or invalid amount
	ErrRemote        an asynchronous call failed, seen only by callbacks

There is also support for stacktraces. Please ensure you create the custom
error using ErrXyz.New("...") or errors.Wrap(err, "...") at the point of
creation to ensure we attach a stacktrace. If you wrap multiple times, we only
record the first wrap with the stacktrace.

Once you have an error, you can use `fmt.Printf/Sprintf` to get more context
for the error
	%s is just the error message
	%+v is the full stack trace
	%v appends a compressed [filename:line] where the error was created
*/
package errors
