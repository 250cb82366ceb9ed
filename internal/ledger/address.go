package ledger

import (
	"sort"
	"strings"
)

// Address identifies an account on the ledger: a principal, a program record or
// a token account.
type Address string

func (a Address) String() string {
	return string(a)
}

// Derive builds a program-derived address from a base address and seeds. The
// same inputs always produce the same address, so records such as vaults and
// vote receipts can be located without being passed in.
func Derive(program string, base Address, seeds ...string) Address {
	parts := make([]string, 0, len(seeds)+2)
	parts = append(parts, program, string(base))
	parts = append(parts, seeds...)
	return Address(strings.Join(parts, "/"))
}

// Key is the storage key of an account. Program records and token accounts
// live in separate key spaces.
type Key string

const (
	recordPrefix = "acct/"
	tokenPrefix  = "token/"
)

// RecordKey returns the storage key of the program record at addr.
func RecordKey(addr Address) Key {
	return Key(recordPrefix + string(addr))
}

// TokenKey returns the storage key of the token account at addr.
func TokenKey(addr Address) Key {
	return Key(tokenPrefix + string(addr))
}

// Kind reports which key space k belongs to.
func (k Key) Kind() string {
	switch {
	case strings.HasPrefix(string(k), recordPrefix):
		return "record"
	case strings.HasPrefix(string(k), tokenPrefix):
		return "token"
	default:
		return "unknown"
	}
}

// Keys collects storage keys for an operation.
func Keys(records []Address, tokens ...Address) []Key {
	keys := make([]Key, 0, len(records)+len(tokens))
	for _, r := range records {
		keys = append(keys, RecordKey(r))
	}
	for _, t := range tokens {
		keys = append(keys, TokenKey(t))
	}
	return keys
}

// Records is a small helper for building the record half of Keys.
func Records(addrs ...Address) []Address {
	return addrs
}

// SortedKeys returns keys deduplicated and in ascending order, the order in
// which stores acquire locks.
func SortedKeys(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
