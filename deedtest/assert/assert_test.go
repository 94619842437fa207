package assert

import (
	"fmt"
	"testing"

	"github.com/iov-one/deedhouse/errors"
)

type recorder struct {
	failed bool
}

func (r *recorder) Helper()                       {}
func (r *recorder) Fatal(...interface{})          { r.failed = true }
func (r *recorder) Fatalf(string, ...interface{}) { r.failed = true }

func TestNil(t *testing.T) {
	cases := map[string]struct {
		value    interface{}
		wantFail bool
	}{
		"nil":            {value: nil, wantFail: false},
		"nil error":      {value: error(nil), wantFail: false},
		"typed nil":      {value: (*int)(nil), wantFail: false},
		"nil slice":      {value: []byte(nil), wantFail: false},
		"error":          {value: fmt.Errorf("boom"), wantFail: true},
		"non nil struct": {value: struct{}{}, wantFail: true},
		"zero int":       {value: 0, wantFail: true},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var r recorder
			Nil(&r, tc.value)
			if r.failed != tc.wantFail {
				t.Fatalf("want fail %v", tc.wantFail)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	var r recorder
	Equal(&r, []byte("a"), []byte("a"))
	if r.failed {
		t.Fatal("equal values")
	}
	Equal(&r, uint64(1), 1)
	if !r.failed {
		t.Fatal("different types must not be equal")
	}
}

func TestIsErr(t *testing.T) {
	IsErr(t, errors.ErrNotFound, errors.Wrap(errors.ErrNotFound, "asset"))
	IsErr(t, nil, nil)
}
