package core

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestAccountLocksSerializeSharedAddresses(t *testing.T) {
	locks := newAccountLocks()
	a, b := common.HexToAddress("0x01"), common.HexToAddress("0x02")

	release := locks.acquire([]common.Address{b, a, a})
	acquired := make(chan struct{})
	go func() {
		r := locks.acquire([]common.Address{a})
		close(acquired)
		r()
	}()
	select {
	case <-acquired:
		t.Fatalf("shared address acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("lock was not handed over after release")
	}
}

func TestAccountLocksDisjointDoNotBlock(t *testing.T) {
	locks := newAccountLocks()
	release := locks.acquire([]common.Address{common.HexToAddress("0x01")})
	defer release()

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		locks.acquire([]common.Address{common.HexToAddress("0x02")})()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("disjoint address blocked")
	}
	wg.Wait()
}

func TestAccountLocksReleaseEntries(t *testing.T) {
	locks := newAccountLocks()
	locks.acquire([]common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")})()
	if len(locks.entries) != 0 {
		t.Fatalf("expected lock table to be empty, have %d entries", len(locks.entries))
	}
}
