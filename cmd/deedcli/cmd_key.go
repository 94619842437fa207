package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
	"golang.org/x/crypto/ed25519"
)

func cmdKeygen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Generate a new private key.

When successful a new file with binary content containing private key is
created. This command fails if the private key file already exists.

A key can be derived deterministically from a hex encoded seed and a SLIP-10
derivation path. Without a seed a random key is generated.
`)
		fl.PrintDefaults()
	}
	var (
		keyPathFl = fl.String("key", env("DEEDCLI_PRIV_KEY", os.Getenv("HOME")+"/.deedhouse.priv.key"),
			"Path to the private key file. You can use DEEDCLI_PRIV_KEY environment variable to set it.")
		seedFl = fl.String("seed", "", "Optional hex encoded seed to derive the key from.")
		pathFl = fl.String("path", "m/44'/148'/0'", "Derivation path used together with the seed.")
	)
	fl.Parse(args)

	if _, err := os.Stat(*keyPathFl); !os.IsNotExist(err) {
		// Do not allow to overwrite already existing private key. User
		// must manually delete it first to ensure we do not delete
		// such crucial data by an accident (bad command usage).
		return fmt.Errorf("private key file %q already exists, delete this file and try again", *keyPathFl)
	}

	var key *crypto.PrivateKey
	if *seedFl == "" {
		key = crypto.GenPrivKeyEd25519()
	} else {
		seed, err := hex.DecodeString(*seedFl)
		if err != nil {
			return fmt.Errorf("cannot decode seed: %s", err)
		}
		if key, err = crypto.DeriveEd25519(seed, *pathFl); err != nil {
			return fmt.Errorf("cannot derive key: %s", err)
		}
	}

	fd, err := os.OpenFile(*keyPathFl, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("cannot create private key file: %s", err)
	}
	defer fd.Close()

	if _, err := fd.Write(key.Ed25519); err != nil {
		return fmt.Errorf("cannot write private key: %s", err)
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("cannot close private key file: %s", err)
	}
	return nil
}

func cmdCredential(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print out the credential of your private key.

A credential is installed on an asset account to grant the key holder
control over it. Bidders include it in their bids.
`)
		fl.PrintDefaults()
	}
	var (
		keyPathFl = fl.String("key", env("DEEDCLI_PRIV_KEY", os.Getenv("HOME")+"/.deedhouse.priv.key"),
			"Path to the private key file. You can use DEEDCLI_PRIV_KEY environment variable to set it.")
	)
	fl.Parse(args)

	key, err := readPrivateKey(*keyPathFl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output, key.Credential())
	return err
}

func cmdKeyaddr(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print out the address of an account in hex and bech32 format.

An account is given either by its name or by an address in any of the
supported formats, for example bech32:<address> or account:<name>.
`)
		fl.PrintDefaults()
	}
	var (
		nameFl = fl.String("name", "", "Name of the account.")
		addrFl = flAddress(fl, "addr", "", "Address of the account.")
	)
	fl.Parse(args)

	var addr deedhouse.Address
	switch {
	case *nameFl != "" && len(*addrFl) != 0:
		flagDie("use either name or address")
	case *nameFl != "":
		addr = deedhouse.AccountAddress(*nameFl)
	case len(*addrFl) != 0:
		addr = *addrFl
	default:
		flagDie("account name or address is required")
		return nil
	}
	_, err := fmt.Fprintf(output, "hex\t%s\nbech32\t%s\n", addr, addr.Bech32())
	return err
}

func readPrivateKey(path string) (*crypto.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read private key file: %s", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", len(raw))
	}
	return &crypto.PrivateKey{Ed25519: raw}, nil
}
