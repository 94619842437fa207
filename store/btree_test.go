package store

import (
	"testing"
)

func memSuite() *testSuite {
	return &testSuite{
		makeBase: func() (CacheableKVStore, func()) {
			return MemStore(), func() {}
		},
	}
}

func TestBTreeCacheGetSet(t *testing.T) {
	memSuite().getSet(t)
}

func TestBTreeCacheConflicts(t *testing.T) {
	memSuite().cacheConflicts(t)
}

func TestBTreeFuzzIterator(t *testing.T) {
	memSuite().fuzzIterator(t)
}

func TestBTreeIteratorWithConflicts(t *testing.T) {
	memSuite().iteratorWithConflicts(t)
}

func TestNestedCacheWrap(t *testing.T) {
	base := MemStore()
	k, v := []byte("asset"), []byte("held")

	outer := base.CacheWrap()
	inner := outer.CacheWrap()
	if err := inner.Set(k, v); err != nil {
		t.Fatalf("set: %s", err)
	}
	assertGetHas(t, outer, k, nil, false)

	if err := inner.Write(); err != nil {
		t.Fatalf("inner write: %s", err)
	}
	assertGetHas(t, outer, k, v, true)
	assertGetHas(t, base, k, nil, false)

	outer.Discard()
	assertGetHas(t, base, k, nil, false)
}
