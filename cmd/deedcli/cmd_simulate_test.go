package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iov-one/deedhouse/deedtest/assert"
)

func TestSimulateSealedAuction(t *testing.T) {
	for name, extra := range map[string][]string{
		"memory":      nil,
		"interleaved": {"-interleave", "7"},
	} {
		t.Run(name, func(t *testing.T) {
			out := simulate(t, extra...)
			assertSealedOutcome(t, out)
		})
	}
}

func TestSimulateOnLevelDB(t *testing.T) {
	dir, err := ioutil.TempDir("", "deedcli")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	dbPath := filepath.Join(dir, "state")
	out := simulate(t, "-db", dbPath)
	assertSealedOutcome(t, out)

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database not created: %s", err)
	}

	// State of a previous run is never reused.
	input, err := os.Open("testdata/sealed.toml")
	assert.Nil(t, err)
	defer input.Close()
	if err := cmdSimulate(input, ioutil.Discard, []string{"-db", dbPath}); err == nil {
		t.Fatal("existing database reused")
	}
}

func TestSimulateOnIAVL(t *testing.T) {
	out := simulate(t, "-iavl")
	assertSealedOutcome(t, out)
	hash := stateHash(t, out)

	// The same scenario always ends in the same state.
	dir, err := ioutil.TempDir("", "deedcli")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)
	out = simulate(t, "-iavl", "-db", filepath.Join(dir, "state"))
	assertSealedOutcome(t, out)
	assert.Equal(t, hash, stateHash(t, out))
}

func stateHash(t testing.TB, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "state version 1 hash ") {
			return strings.TrimPrefix(line, "state version 1 hash ")
		}
	}
	t.Fatalf("no state hash in\n%s", out)
	return ""
}

func simulate(t testing.TB, args ...string) string {
	t.Helper()

	input, err := os.Open("testdata/sealed.toml")
	assert.Nil(t, err)
	defer input.Close()

	var out bytes.Buffer
	if err := cmdSimulate(input, &out, args); err != nil {
		t.Fatalf("simulation failed: %s\n%s", err, out.String())
	}
	return out.String()
}

func assertSealedOutcome(t testing.TB, out string) {
	t.Helper()

	balances := make(map[string][]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 {
			balances[fields[0]] = fields[1:]
		}
	}

	want := map[string][]string{
		"alice":  {"98", "alice"},
		"bob":    {"60", "bob"},
		"carol":  {"95", "carol"},
		"seller": {"40", "seller"},
		"fees":   {"7", "-"},
		"villa":  {"0", "bob"},
	}
	for name, w := range want {
		got, ok := balances[name]
		if !ok {
			t.Fatalf("no balance of %s in\n%s", name, out)
		}
		assert.Equal(t, w, got)
	}
	if !strings.Contains(out, "auctions completed 1, cancelled 0, failed 0") {
		t.Fatalf("unexpected statistics in\n%s", out)
	}
	if !strings.Contains(out, "height 32") {
		t.Fatalf("unexpected height in\n%s", out)
	}
}

func TestReadScenario(t *testing.T) {
	cases := map[string]struct {
		doc     string
		wantErr bool
	}{
		"minimal": {
			doc: `
[[account]]
name = "alice"
`,
		},
		"unknown action": {
			doc: `
[[account]]
name = "alice"
[[asset]]
name = "villa"
owner = "alice"
[[step]]
actor = "alice"
action = "steal"
asset = "villa"
`,
			wantErr: true,
		},
		"unknown actor": {
			doc: `
[[account]]
name = "alice"
[[asset]]
name = "villa"
owner = "alice"
[[step]]
actor = "bob"
action = "finalize"
asset = "villa"
`,
			wantErr: true,
		},
		"unknown mode": {
			doc: `
[[account]]
name = "alice"
[[asset]]
name = "villa"
owner = "alice"
[[step]]
actor = "alice"
action = "create"
asset = "villa"
mode = "dutch"
`,
			wantErr: true,
		},
		"asset name taken by an account": {
			doc: `
[[account]]
name = "alice"
[[asset]]
name = "alice"
owner = "alice"
`,
			wantErr: true,
		},
		"advance without blocks": {
			doc: `
[[step]]
action = "advance"
`,
			wantErr: true,
		},
		"unknown scheme": {
			doc:     `scheme = "md5"`,
			wantErr: true,
		},
		"invalid chain ID": {
			doc:     `chain_id = "x"`,
			wantErr: true,
		},
		"invalid seed": {
			doc:     `seed = "xyz"`,
			wantErr: true,
		},
		"malformed document": {
			doc:     `[[account`,
			wantErr: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := readScenario(strings.NewReader(tc.doc))
			if tc.wantErr != (err != nil) {
				t.Fatalf("want error %v, got %v", tc.wantErr, err)
			}
		})
	}
}
