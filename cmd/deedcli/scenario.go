package main

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/x/auction"
)

// scenario describes a simulated auction house session.
type scenario struct {
	// Seed is a hex encoded seed all account keys are derived from.
	// Random keys are used when empty.
	Seed         string `toml:"seed"`
	ChainID      string `toml:"chain_id"`
	Governance   string `toml:"governance"`
	BaseFee      uint64 `toml:"base_fee"`
	MinWindow    int64  `toml:"min_window"`
	Window       int64  `toml:"window"`
	RevealWindow int64  `toml:"reveal_window"`
	Scheme       string `toml:"scheme"`

	Accounts []scenarioAccount `toml:"account"`
	Assets   []scenarioAsset   `toml:"asset"`
	Steps    []scenarioStep    `toml:"step"`
}

type scenarioAccount struct {
	Name    string `toml:"name"`
	Balance uint64 `toml:"balance"`
}

type scenarioAsset struct {
	Name string `toml:"name"`
	// Owner is the account holding the key of the asset.
	Owner string `toml:"owner"`
	// Underwriter is the account the asset is put into custody for.
	// Defaults to the owner.
	Underwriter string `toml:"underwriter"`
}

type scenarioStep struct {
	Actor   string `toml:"actor"`
	Action  string `toml:"action"`
	Asset   string `toml:"asset"`
	Mode    string `toml:"mode"`
	Close   int64  `toml:"close"`
	Amount  uint64 `toml:"amount"`
	Deposit uint64 `toml:"deposit"`
	Salt    string `toml:"salt"`
	Blocks  int64  `toml:"blocks"`
}

const (
	actionCreate   = "create"
	actionBid      = "bid"
	actionReveal   = "reveal"
	actionCancel   = "cancel"
	actionFinalize = "finalize"
	actionRevert   = "revert"
	actionAdvance  = "advance"
)

func readScenario(r io.Reader) (*scenario, error) {
	var s scenario
	if _, err := toml.DecodeReader(r, &s); err != nil {
		return nil, fmt.Errorf("cannot decode scenario: %s", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *scenario) validate() error {
	accounts := make(map[string]bool)
	for _, a := range s.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account name is required")
		}
		if accounts[a.Name] {
			return fmt.Errorf("duplicated account %q", a.Name)
		}
		accounts[a.Name] = true
	}
	if s.ChainID != "" && !deedhouse.IsValidChainID(s.ChainID) {
		return fmt.Errorf("invalid chain ID %q", s.ChainID)
	}
	if s.Governance != "" && !accounts[s.Governance] {
		return fmt.Errorf("unknown governance account %q", s.Governance)
	}
	if s.Scheme != "" && !auction.IsKnownScheme(s.Scheme) {
		return fmt.Errorf("unknown commitment scheme %q", s.Scheme)
	}
	if s.Seed != "" {
		if _, err := hex.DecodeString(s.Seed); err != nil {
			return fmt.Errorf("invalid seed: %s", err)
		}
	}

	assets := make(map[string]bool)
	for _, a := range s.Assets {
		if a.Name == "" {
			return fmt.Errorf("asset name is required")
		}
		if assets[a.Name] || accounts[a.Name] {
			return fmt.Errorf("duplicated account %q", a.Name)
		}
		if !accounts[a.Owner] {
			return fmt.Errorf("asset %q: unknown owner %q", a.Name, a.Owner)
		}
		if a.Underwriter != "" && !accounts[a.Underwriter] {
			return fmt.Errorf("asset %q: unknown underwriter %q", a.Name, a.Underwriter)
		}
		assets[a.Name] = true
	}

	for i, st := range s.Steps {
		switch st.Action {
		case actionAdvance:
			if st.Blocks < 1 {
				return fmt.Errorf("step %d: advance requires at least one block", i+1)
			}
			continue
		case actionCreate:
			if _, err := parseMode(st.Mode); err != nil {
				return fmt.Errorf("step %d: %s", i+1, err)
			}
		case actionBid, actionReveal, actionCancel, actionFinalize, actionRevert:
		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
		if !accounts[st.Actor] {
			return fmt.Errorf("step %d: unknown actor %q", i+1, st.Actor)
		}
		if !assets[st.Asset] {
			return fmt.Errorf("step %d: unknown asset %q", i+1, st.Asset)
		}
	}
	return nil
}

func parseMode(s string) (auction.Mode, error) {
	switch s {
	case "", "open":
		return auction.Open, nil
	case "sealed":
		return auction.Sealed, nil
	default:
		return 0, fmt.Errorf("unknown auction mode %q", s)
	}
}

// keys returns a private key for every account of the scenario, and one
// more for the custodian.
func (s *scenario) keys() ([]*crypto.PrivateKey, error) {
	keys := make([]*crypto.PrivateKey, len(s.Accounts)+1)
	if s.Seed == "" {
		for i := range keys {
			keys[i] = crypto.GenPrivKeyEd25519()
		}
		return keys, nil
	}
	seed, err := hex.DecodeString(s.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %s", err)
	}
	for i := range keys {
		k, err := crypto.DeriveEd25519(seed, fmt.Sprintf("m/44'/148'/%d'", i))
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}
