package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned for identities that are not resource addresses.
var ErrInvalidAddress = errors.New("invalid resource address")

// Address is the parsed form of a descriptor identity,
// e.g. "aws_lb_listener.https[0]" → {Type: "aws_lb_listener", Name: "https", Index: 0, Indexed: true}.
type Address struct {
	Type    string
	Name    string
	Index   int
	Indexed bool
}

// ParseAddress parses a Terraform-style resource address.
func ParseAddress(identity string) (Address, error) {
	typ, rest, ok := strings.Cut(identity, ".")
	if !ok || typ == "" || rest == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, identity)
	}

	addr := Address{Type: typ, Name: rest}
	if open := strings.IndexByte(rest, '['); open >= 0 {
		if !strings.HasSuffix(rest, "]") || open == 0 {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, identity)
		}
		idx, err := strconv.Atoi(rest[open+1 : len(rest)-1])
		if err != nil || idx < 0 {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, identity)
		}
		addr.Name = rest[:open]
		addr.Index = idx
		addr.Indexed = true
	}
	if strings.Contains(addr.Name, ".") {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, identity)
	}
	return addr, nil
}

// String formats the address back into identity form.
func (a Address) String() string {
	if a.Indexed {
		return fmt.Sprintf("%s.%s[%d]", a.Type, a.Name, a.Index)
	}
	return a.Type + "." + a.Name
}
