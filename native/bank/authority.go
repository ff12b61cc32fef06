package bank

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/AndreyBrytkov/cowdfunding/crypto"
)

// Authority proves the right to debit or create an account. The interface is
// sealed: only the constructors in this package produce values satisfying it.
type Authority interface {
	authorizes(addr common.Address) bool
}

type signerSet map[common.Address]struct{}

func (s signerSet) authorizes(addr common.Address) bool {
	_, ok := s[addr]
	return ok
}

// Signers returns an authority covering addresses whose signatures were
// verified by the caller.
func Signers(addrs ...common.Address) Authority {
	set := make(signerSet, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return set
}

type programSigner struct {
	addr common.Address
}

func (p programSigner) authorizes(addr common.Address) bool {
	return p.addr == addr
}

// ProgramSigner lets a program sign for one of its derived addresses. The
// address is re-derived from program, seeds and bump; the resulting authority
// covers that address and nothing else.
func ProgramSigner(program common.Address, seeds [][]byte, bump uint8) (Authority, error) {
	addr, err := crypto.CreateProgramAddress(program, seeds, bump)
	if err != nil {
		return nil, err
	}
	return programSigner{addr: addr}, nil
}

type combined []Authority

func (c combined) authorizes(addr common.Address) bool {
	for _, auth := range c {
		if auth != nil && auth.authorizes(addr) {
			return true
		}
	}
	return false
}

// Combine merges authorities; the result authorizes an address when any part
// does.
func Combine(auths ...Authority) Authority {
	return combined(auths)
}

// Authorizes reports whether auth may act for addr. A nil authority authorizes
// nothing.
func Authorizes(auth Authority, addr common.Address) bool {
	return auth != nil && auth.authorizes(addr)
}
