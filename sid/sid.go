// Package sid provides a lightweight identity handle used to reference and
// cancel in-flight timers. A Sid is cheap to copy and compares equal only to
// copies of itself, never to a different Sid created by a different call to
// New — the address of the backing allocation, not its contents, is the
// identity.
package sid

import "fmt"

// Sid is a shareable identifier. The zero value is "unset" and never equal
// to any Sid returned by New.
type Sid struct {
	token *byte
}

// New allocates a fresh, unique Sid. The token is one byte rather than a
// zero-size struct, because Go may give every zero-size allocation the
// same address.
func New() Sid {
	return Sid{token: new(byte)}
}

// Valid reports whether the Sid was constructed by New.
func (s Sid) Valid() bool {
	return s.token != nil
}

// Equal reports whether s and other refer to the same underlying allocation.
func (s Sid) Equal(other Sid) bool {
	return s.token == other.token
}

func (s Sid) String() string {
	if s.token == nil {
		return "sid(nil)"
	}
	return fmt.Sprintf("sid(%p)", s.token)
}
