package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/deedhouse/x/auction"
)

func cmdCommitment(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Compute the commitment of a sealed bid.

The commitment is submitted with the bid. Once the auction closes, the same
amount must be attached to the reveal together with the salt. Keep the salt
secret until then.
`)
		fl.PrintDefaults()
	}
	var (
		amountFl = fl.Uint64("amount", 0, "Bid amount.")
		saltFl   = fl.String("salt", "", "Secret salt. Required.")
		schemeFl = fl.String("scheme", auction.SchemeSHA256, "Commitment scheme configured in the coordinator.")
	)
	fl.Parse(args)

	if *amountFl == 0 {
		flagDie("amount must be greater than zero")
	}
	if *saltFl == "" {
		flagDie("salt is required")
	}
	c, err := auction.Commitment(*schemeFl, *amountFl, *saltFl)
	if err != nil {
		return fmt.Errorf("cannot compute commitment: %s", err)
	}
	_, err = fmt.Fprintln(output, hex.EncodeToString(c))
	return err
}
