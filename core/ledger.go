package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	coreerrors "github.com/AndreyBrytkov/cowdfunding/core/errors"
	"github.com/AndreyBrytkov/cowdfunding/core/events"
	"github.com/AndreyBrytkov/cowdfunding/core/genesis"
	"github.com/AndreyBrytkov/cowdfunding/core/state"
	"github.com/AndreyBrytkov/cowdfunding/core/types"
	"github.com/AndreyBrytkov/cowdfunding/native/bank"
	"github.com/AndreyBrytkov/cowdfunding/native/crowdfund"
	"github.com/AndreyBrytkov/cowdfunding/observability"
	"github.com/AndreyBrytkov/cowdfunding/storage"
	"github.com/AndreyBrytkov/cowdfunding/storage/trie"
)

var headKey = []byte("cowdfund/head")

type headRecord struct {
	Root   common.Hash
	Height uint64
}

// Config carries the ledger's consensus-relevant parameters.
type Config struct {
	ChainID uint64
	Rent    bank.Rent
}

// Receipt describes an applied request.
type Receipt struct {
	TxHash  common.Hash        `json:"txHash"`
	Signer  common.Address     `json:"signer"`
	Nonce   uint64             `json:"nonce"`
	Outcome *crowdfund.Outcome `json:"outcome"`
	Events  []types.Event      `json:"events"`
}

// Ledger validates and applies signed requests. Each request executes against
// a private overlay and its changes reach the trie in one step, so a request
// either takes full effect or none. Requests lock the accounts they write;
// requests on disjoint campaigns proceed in parallel and only contend briefly
// on the trie itself.
type Ledger struct {
	mu     sync.Mutex // guards trie and height
	db     storage.Database
	trie   *trie.Trie
	height uint64

	chainID uint64
	rent    bank.Rent
	locks   *accountLocks

	commitEvery uint64
	applied     atomic.Uint64

	emitter events.Emitter
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	tracer  trace.Tracer

	// requests mirrors the instruction counter to the OTLP meter provider.
	requests metric.Int64Counter
}

// New opens the ledger on db, resuming from the last committed head if one
// was recorded.
func New(db storage.Database, cfg Config, logger *slog.Logger) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	head, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if head != nil {
		root = head.Root.Bytes()
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("ledger: open state trie: %w", err)
	}
	if head != nil {
		if err := state.NewManager(tr).CheckSchema(); err != nil {
			return nil, err
		}
	}
	requests, err := otel.Meter("cowdfund/ledger").Int64Counter("cowdfund.ledger.requests",
		metric.WithDescription("Requests submitted to the ledger by instruction and outcome."))
	if err != nil {
		return nil, fmt.Errorf("ledger: register request counter: %w", err)
	}
	l := &Ledger{
		db:      db,
		trie:    tr,
		chainID: cfg.ChainID,
		rent:    cfg.Rent,
		locks:   newAccountLocks(),
		emitter: events.NoopEmitter{},
		logger:  logger.With("component", "ledger"),
		metrics: observability.Ledger(),
		tracer:  otel.Tracer("cowdfund/ledger"),

		requests: requests,
	}
	if head != nil {
		l.height = head.Height
	}
	return l, nil
}

func loadHead(db storage.Database) (*headRecord, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read head: %w", err)
	}
	head := new(headRecord)
	if err := rlp.DecodeBytes(raw, head); err != nil {
		return nil, fmt.Errorf("ledger: decode head: %w", err)
	}
	return head, nil
}

// SetEmitter configures where the events of applied requests are forwarded.
// Rejected requests never reach it. Passing nil resets the emitter to a no-op
// implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// SetCommitEvery makes the ledger persist its state after every n applied
// requests. Zero disables automatic commits.
func (l *Ledger) SetCommitEvery(n uint64) { l.commitEvery = n }

// ChainID returns the chain id requests must carry.
func (l *Ledger) ChainID() uint64 { return l.chainID }

// Submit authenticates tx, executes it and applies its effects atomically.
func (l *Ledger) Submit(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	start := time.Now()
	instruction := "unknown"
	if tx != nil {
		instruction = crowdfund.Kind(tx.Data).String()
	}
	ctx, span := l.tracer.Start(ctx, "ledger.submit",
		trace.WithAttributes(attribute.String("instruction", instruction)))
	defer span.End()

	receipt, err := l.submit(tx)
	code := coreerrors.Code(err)
	var moved uint64
	if receipt != nil {
		moved = receipt.Outcome.ValueMoved()
	}
	l.metrics.ObserveInstruction(instruction, code, moved, time.Since(start))
	l.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("instruction", instruction),
		attribute.String("outcome", code)))
	span.SetAttributes(attribute.String("outcome", code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Info("request rejected", "instruction", instruction, "code", code, "error", err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "applied")
	l.logger.Info("request applied",
		"instruction", instruction,
		"tx", receipt.TxHash.Hex(),
		"signer", receipt.Signer.Hex(),
		"nonce", receipt.Nonce,
		"value", moved,
		"duration", time.Since(start))
	l.maybeCommit()
	return receipt, nil
}

// maybeCommit persists state on the configured cadence. The request has
// already been applied, so a failure here is logged rather than returned.
func (l *Ledger) maybeCommit() {
	if l.commitEvery == 0 {
		return
	}
	if l.applied.Add(1)%l.commitEvery != 0 {
		return
	}
	if root, err := l.Commit(); err != nil {
		l.logger.Error("state commit failed", "error", err)
	} else {
		l.logger.Debug("state committed", "root", root.Hex(), "height", l.Height())
	}
}

func (l *Ledger) submit(tx *types.Transaction) (*Receipt, error) {
	from, err := l.authorize(tx)
	if err != nil {
		return nil, err
	}
	txHash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	release := l.locks.acquire(writeSet(tx, from))
	defer release()

	overlay := state.NewOverlay(committedView{l: l})
	signerAcc, err := overlay.GetAccount(from)
	if err != nil {
		return nil, err
	}
	var expected uint64
	if signerAcc != nil {
		expected = signerAcc.Nonce
	}
	if tx.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrNonceMismatch, tx.Nonce, expected)
	}

	buffer := &events.Buffer{}
	engine := crowdfund.NewEngine(l.rent)
	engine.SetState(overlay)
	engine.SetEmitter(buffer)
	outcome, err := engine.Execute(tx.Data, tx.Accounts, bank.Signers(from))
	if err != nil {
		return nil, err
	}

	if err := bumpNonce(overlay, from); err != nil {
		return nil, err
	}
	if err := l.apply(overlay.Changes()); err != nil {
		return nil, err
	}

	receipt := &Receipt{TxHash: txHash, Signer: from, Nonce: tx.Nonce, Outcome: outcome}
	for _, evt := range buffer.Events() {
		if payload, ok := evt.(interface{ Event() *types.Event }); ok && payload.Event() != nil {
			receipt.Events = append(receipt.Events, *payload.Event())
		}
		l.metrics.RecordEvent(evt.EventType())
	}
	buffer.FlushTo(l.emitter)
	return receipt, nil
}

// bumpNonce advances the signer's nonce. A signer without an account (one
// that has never held value) keeps nonce zero until it receives some.
func bumpNonce(overlay *state.Overlay, from common.Address) error {
	acc, err := overlay.GetAccount(from)
	if err != nil || acc == nil {
		return err
	}
	acc.Nonce++
	return overlay.PutAccount(from, acc)
}

// apply writes the staged changes to a copy of the trie and swaps it in only
// when every change landed.
func (l *Ledger) apply(changes []state.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	working := l.trie.Copy()
	if err := state.NewManager(working).Apply(changes); err != nil {
		return fmt.Errorf("%w: %w", coreerrors.ErrCommitFailed, err)
	}
	l.trie = working
	return nil
}

// Commit persists the current state and records it as the head.
func (l *Ledger) Commit() (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commitLocked()
}

func (l *Ledger) commitLocked() (common.Hash, error) {
	height := l.height + 1
	root, err := l.trie.Commit(height)
	if err != nil {
		return common.Hash{}, fmt.Errorf("ledger: commit state: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&headRecord{Root: root, Height: height})
	if err != nil {
		return common.Hash{}, err
	}
	if err := l.db.Put(headKey, encoded); err != nil {
		return common.Hash{}, fmt.Errorf("ledger: persist head: %w", err)
	}
	l.height = height
	l.metrics.RecordCommit()
	return root, nil
}

// Root returns the hash of the current state, including uncommitted requests.
func (l *Ledger) Root() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trie.Hash()
}

// Height returns the number of commits recorded so far.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// InitGenesis credits the genesis allocations into an empty ledger and
// commits the result. It reports false without changes when state already
// exists.
func (l *Ledger) InitGenesis(spec *genesis.GenesisSpec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("ledger: genesis spec must not be nil")
	}
	if id, ok := spec.ChainIDValue(); ok && id != l.chainID {
		return false, fmt.Errorf("%w: genesis declares %d, node runs %d", coreerrors.ErrChainIDMismatch, id, l.chainID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.trie.Hash() != gethtypes.EmptyRootHash {
		return false, nil
	}
	manager := state.NewManager(l.trie)
	b := bank.New(manager, l.rent)
	for _, alloc := range spec.Allocations() {
		if err := b.Credit(alloc.Address, alloc.Amount); err != nil {
			return false, fmt.Errorf("ledger: genesis alloc %s: %w", alloc.Address.Hex(), err)
		}
	}
	if err := manager.StampSchema(); err != nil {
		return false, err
	}
	root, err := l.commitLocked()
	if err != nil {
		return false, err
	}
	l.logger.Info("genesis applied", "root", root.Hex(), "allocations", len(spec.Allocations()))
	return true, nil
}

// Account returns the account stored at addr, or nil when absent.
func (l *Ledger) Account(addr common.Address) (*types.Account, error) {
	return committedView{l: l}.GetAccount(addr)
}

// Campaign returns the campaign record stored at addr.
func (l *Ledger) Campaign(addr common.Address) (*crowdfund.Campaign, error) {
	return l.readEngine().Campaign(addr)
}

// VaultBalance returns the balance of the campaign's vault.
func (l *Ledger) VaultBalance(campaign common.Address) (*uint256.Int, error) {
	return l.readEngine().VaultBalance(campaign)
}

func (l *Ledger) readEngine() *crowdfund.Engine {
	engine := crowdfund.NewEngine(l.rent)
	engine.SetState(state.NewOverlay(committedView{l: l}))
	return engine
}

// committedView reads the ledger's current state under the ledger mutex.
type committedView struct {
	l *Ledger
}

func (v committedView) GetAccount(addr common.Address) (*types.Account, error) {
	v.l.mu.Lock()
	defer v.l.mu.Unlock()
	return state.NewManager(v.l.trie).GetAccount(addr)
}
