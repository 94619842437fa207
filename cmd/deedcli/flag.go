package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iov-one/deedhouse"
)

// flAddress returns a value that is being initialized with given default value
// and optionally overwritten by a command line argument if provided. This
// function follows Go's flag package convention.
// If given value cannot be deserialized to required type, process is
// terminated.
func flAddress(fl *flag.FlagSet, name, defaultVal, usage string) *deedhouse.Address {
	var a deedhouse.Address
	if defaultVal != "" {
		var err error
		a, err = deedhouse.ParseAddress(defaultVal)
		if err != nil {
			flagDie("Cannot parse %q address flag value. %s", name, err)
		}
	}
	fl.Var(&a, name, usage)
	return &a
}

// flagDie terminates the program when a flag validation has failed. It is
// a variable so that tests can observe calls instead of exiting.
var flagDie = func(description string, args ...interface{}) {
	s := fmt.Sprintf(description, args...)
	fmt.Fprintln(os.Stderr, s)
	os.Exit(2)
}
