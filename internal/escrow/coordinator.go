package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/event"
	"github.com/GiG2Hire/gig-contract/internal/observability"
)

// Output is one applied operation, ready for the persistence worker and the
// outbound publisher.
type Output struct {
	Envelope  *event.Envelope
	Transfers []event.Transfer
}

// Config wires a Coordinator to its ports and infrastructure.
type Config struct {
	Token    Token
	Facility Facility
	Native   NativeBank

	// Holding is the account this system custodies locked funds under.
	Holding common.Address

	// Admin is the initial administrator.
	Admin common.Address

	// Clock overrides the time source (tests). Defaults to time.Now.
	Clock func() time.Time

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// Outputs receives every applied operation. Sends block: if the
	// persistence worker falls behind, operations stall rather than lose
	// log entries.
	Outputs chan<- Output

	// Projections receives the same outputs with non-blocking sends;
	// projection workers rebuild from the operation log if they fall
	// behind.
	Projections chan<- Output
}

// Coordinator orchestrates the escrow lifecycle: it locks client funds,
// redeploys them into the lending facility, and releases exact principal on
// close. One mutex serializes all public operations, so each runs as an
// indivisible unit relative to the others. External-call failures are
// compensated before the error returns, so the ledger never exposes partial
// state.
type Coordinator struct {
	mu sync.Mutex

	token    Token
	facility Facility
	native   NativeBank
	holding  common.Address
	admin    common.Address

	ledger *ProposalLedger
	idgen  *IDGenerator
	hasher *StateHasher

	// principal mirrors the facility deposits this system has outstanding;
	// checked against the ledger sum after every open/close.
	principal *big.Int

	nativeBalance *big.Int

	sequence int64
	clock    func() time.Time

	metrics *observability.Metrics
	log     zerolog.Logger

	outputs     chan<- Output
	projections chan<- Output
}

// NewCoordinator validates the ports and grants the facility its one-time
// unlimited transfer allowance.
func NewCoordinator(ctx context.Context, cfg Config) (*Coordinator, error) {
	if cfg.Token == nil || cfg.Token.Address() == (common.Address{}) {
		return nil, fmt.Errorf("new coordinator: %w", ErrInvalidAssetToken)
	}
	if cfg.Facility == nil {
		return nil, fmt.Errorf("new coordinator: facility not configured")
	}
	if cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("new coordinator: %w", ErrIncorrectWallet)
	}

	clock := cfg.Clock
	idgen := NewIDGenerator()
	if clock != nil {
		idgen = NewIDGeneratorWithClock(clock)
	} else {
		clock = time.Now
	}

	if err := cfg.Token.Approve(ctx, cfg.Facility.Address(), ethmath.MaxBig256); err != nil {
		return nil, fmt.Errorf("new coordinator: grant facility allowance: %w", err)
	}

	return &Coordinator{
		token:         cfg.Token,
		facility:      cfg.Facility,
		native:        cfg.Native,
		holding:       cfg.Holding,
		admin:         cfg.Admin,
		ledger:        NewProposalLedger(),
		idgen:         idgen,
		hasher:        NewStateHasher(),
		principal:     new(big.Int),
		nativeBalance: new(big.Int),
		clock:         clock,
		metrics:       cfg.Metrics,
		log:           cfg.Logger,
		outputs:       cfg.Outputs,
		projections:   cfg.Projections,
	}, nil
}

// OpenProposal pulls amount from the caller, records the proposal, and
// supplies the full amount to the lending facility. Returns the bearer
// identifier that later closes the proposal.
func (c *Coordinator) OpenProposal(ctx context.Context, caller common.Address, amount *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if amount == nil || amount.Sign() <= 0 {
		c.reject("open_proposal", "zero_amount")
		return common.Hash{}, fmt.Errorf("open proposal: %w", ErrAmountIsZero)
	}
	amount = new(big.Int).Set(amount)

	if err := c.token.TransferFrom(ctx, caller, c.holding, amount); err != nil {
		c.reject("open_proposal", "transfer_failed")
		return common.Hash{}, fmt.Errorf("open proposal: pull %s from %s: %w: %v",
			amount, caller, ErrTransferFailed, err)
	}

	id := c.idgen.Generate(caller, amount)

	p := &Proposal{ID: id, Amount: amount, Initiator: caller, OpenedAt: c.clock()}
	if err := c.ledger.Insert(p); err != nil {
		c.refund(ctx, "open_proposal", caller, amount)
		c.reject("open_proposal", "duplicate")
		return common.Hash{}, fmt.Errorf("open proposal: %w", err)
	}

	if err := c.facilityDeposit(ctx, amount); err != nil {
		// Unwind the insert and the pull so the caller observes the
		// operation as if it never started.
		if _, rmErr := c.ledger.Remove(id); rmErr != nil {
			c.log.Error().Err(rmErr).Stringer("identifier", id).
				Msg("compensation remove failed")
		}
		c.refund(ctx, "open_proposal", caller, amount)
		c.reject("open_proposal", "deposit_failed")
		return common.Hash{}, fmt.Errorf("open proposal: facility deposit: %w", err)
	}
	c.principal.Add(c.principal, amount)
	c.auditConservation()

	c.emit(event.EventTypeProposalOpened, &id,
		event.ProposalOpened{Identifier: id, Amount: amount, Initiator: caller},
		[]event.Transfer{
			{Debit: "holding", Credit: accountPath("client", caller), Amount: amount, Kind: event.TransferKindLock},
			{Debit: "facility", Credit: "holding", Amount: amount, Kind: event.TransferKindSupply},
		})

	c.applied("open_proposal", start)
	c.log.Info().Stringer("identifier", id).Stringer("initiator", caller).
		Str("amount", amount.String()).Msg("proposal opened")
	return id, nil
}

// CloseProposal removes the proposal and withdraws its exact principal from
// the facility to the effective recipient. Possession of a still-open
// identifier is the only credential required: any caller holding it may
// close and redirect the funds.
func (c *Coordinator) CloseProposal(ctx context.Context, caller common.Address, id common.Hash, recipient common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	// Entry is removed before the external call, so a reentrant close of
	// the same identifier during the withdrawal cannot double-release.
	p, err := c.ledger.Remove(id)
	if err != nil {
		c.reject("close_proposal", "unknown_proposal")
		return fmt.Errorf("close proposal: %w", err)
	}

	if recipient == (common.Address{}) {
		recipient = caller
	}

	if err := c.facilityWithdraw(ctx, p.Amount, recipient); err != nil {
		if insErr := c.ledger.Insert(p); insErr != nil {
			c.log.Error().Err(insErr).Stringer("identifier", id).
				Msg("compensation reinsert failed")
		}
		if c.metrics != nil {
			c.metrics.CompensationsRun.WithLabelValues("close_proposal").Inc()
		}
		c.reject("close_proposal", "withdraw_failed")
		return fmt.Errorf("close proposal: facility withdraw: %w", err)
	}
	c.principal.Sub(c.principal, p.Amount)
	c.auditConservation()

	c.emit(event.EventTypeProposalClosed, &id,
		event.ProposalClosed{Identifier: id, Recipient: recipient},
		[]event.Transfer{
			{Debit: accountPath("recipient", recipient), Credit: "facility", Amount: p.Amount, Kind: event.TransferKindRelease},
		})

	c.applied("close_proposal", start)
	c.log.Info().Stringer("identifier", id).Stringer("recipient", recipient).
		Str("amount", p.Amount.String()).Msg("proposal closed")
	return nil
}

// WithdrawFloat sweeps amount of accumulated yield/principal to the
// administrator. Only the administrator may call it, and the amount must not
// exceed the facility's currently withdrawable balance.
func (c *Coordinator) WithdrawFloat(ctx context.Context, caller common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if caller != c.admin {
		c.reject("withdraw_float", "not_admin")
		return fmt.Errorf("withdraw float: caller %s: %w", caller, ErrIncorrectWallet)
	}
	if amount == nil || amount.Sign() <= 0 {
		c.reject("withdraw_float", "excess_amount")
		return fmt.Errorf("withdraw float: %w", ErrIncorrectAmount)
	}

	withdrawable, err := c.facility.Withdrawable(ctx)
	if err != nil {
		c.reject("withdraw_float", "facility_query")
		return fmt.Errorf("withdraw float: query withdrawable: %w", err)
	}
	if amount.Cmp(withdrawable) > 0 {
		c.reject("withdraw_float", "excess_amount")
		return fmt.Errorf("withdraw float: %s exceeds withdrawable %s: %w",
			amount, withdrawable, ErrIncorrectAmount)
	}

	if err := c.facilitySweep(ctx, amount, c.admin); err != nil {
		c.reject("withdraw_float", "transfer_failed")
		return fmt.Errorf("withdraw float: %w: %v", ErrTransferFailed, err)
	}

	c.emit(event.EventTypeWithdrawAsset, nil,
		event.WithdrawAsset{Receiver: c.admin, Amount: new(big.Int).Set(amount)},
		[]event.Transfer{
			{Debit: accountPath("recipient", c.admin), Credit: "facility", Amount: new(big.Int).Set(amount), Kind: event.TransferKindFloatSweep},
		})

	c.applied("withdraw_float", start)
	c.log.Info().Stringer("receiver", c.admin).Str("amount", amount.String()).
		Msg("float withdrawn")
	return nil
}

// WithdrawNative sweeps the full native-currency balance to the
// administrator.
func (c *Coordinator) WithdrawNative(ctx context.Context, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if caller != c.admin {
		c.reject("withdraw_native", "not_admin")
		return fmt.Errorf("withdraw native: caller %s: %w", caller, ErrIncorrectWallet)
	}

	amount := new(big.Int).Set(c.nativeBalance)
	if c.native == nil {
		c.reject("withdraw_native", "transfer_failed")
		return fmt.Errorf("withdraw native: %w: no native bank configured", ErrTransferFailed)
	}
	if err := c.native.Transfer(ctx, c.admin, amount); err != nil {
		c.reject("withdraw_native", "transfer_failed")
		return fmt.Errorf("withdraw native: %w: %v", ErrTransferFailed, err)
	}
	c.nativeBalance.SetInt64(0)
	c.gaugeNative()

	c.emit(event.EventTypeWithdrawNative, nil,
		event.WithdrawNative{Receiver: c.admin, Amount: amount},
		[]event.Transfer{
			{Debit: accountPath("recipient", c.admin), Credit: "native", Amount: amount, Kind: event.TransferKindNativeSweep},
		})

	c.applied("withdraw_native", start)
	c.log.Info().Stringer("receiver", c.admin).Str("amount", amount.String()).
		Msg("native balance withdrawn")
	return nil
}

// ChangeAdministrator reassigns administrative control. Immediate and
// irreversible by the old administrator: there is no acceptance handshake.
func (c *Coordinator) ChangeAdministrator(ctx context.Context, caller, newAdmin common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	if caller != c.admin {
		c.reject("change_administrator", "not_admin")
		return fmt.Errorf("change administrator: caller %s: %w", caller, ErrIncorrectWallet)
	}

	old := c.admin
	c.admin = newAdmin

	c.emit(event.EventTypeWalletChanged, nil,
		event.WalletChanged{OldAdmin: old, NewAdmin: newAdmin}, nil)

	c.applied("change_administrator", start)
	c.log.Info().Stringer("old_admin", old).Stringer("new_admin", newAdmin).
		Msg("administrator changed")
	return nil
}

// ReceiveNative credits an unsolicited native-currency transfer. Receipt is
// passive: it triggers no logic and cannot fail.
func (c *Coordinator) ReceiveNative(from common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return
	}
	amount = new(big.Int).Set(amount)
	c.nativeBalance.Add(c.nativeBalance, amount)
	c.gaugeNative()

	c.emit(event.EventTypeNativeReceived, nil,
		event.NativeReceived{From: from, Amount: amount},
		[]event.Transfer{
			{Debit: "native", Credit: accountPath("client", from), Amount: amount, Kind: event.TransferKindNativeReceipt},
		})
}

// --- Read-side accessors ---

// Admin returns the current administrator.
func (c *Coordinator) Admin() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

// Proposal returns a copy of an open proposal.
func (c *Coordinator) Proposal(id common.Hash) (*Proposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Get(id)
}

// OpenProposals returns copies of all open proposals in identifier order.
func (c *Coordinator) OpenProposals() []*Proposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Open()
}

// TotalLocked returns the sum of all open amounts.
func (c *Coordinator) TotalLocked() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.TotalLocked()
}

// NativeBalance returns the native-currency balance held by the system.
func (c *Coordinator) NativeBalance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.nativeBalance)
}

// Sequence returns the next operation-log sequence number.
func (c *Coordinator) Sequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// StateHash returns the operation-log chain tip.
func (c *Coordinator) StateHash() [32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasher.PrevHash()
}

// --- Internals ---

// refund returns pulled funds to the caller after a failed open. A failed
// refund leaves funds parked in the holding account; it is logged for
// operator intervention rather than masked.
func (c *Coordinator) refund(ctx context.Context, op string, to common.Address, amount *big.Int) {
	if c.metrics != nil {
		c.metrics.CompensationsRun.WithLabelValues(op).Inc()
	}
	if err := c.token.Transfer(ctx, to, amount); err != nil {
		c.log.Error().Err(err).Stringer("to", to).Str("amount", amount.String()).
			Msg("compensation refund failed; funds remain in holding")
	}
}

func (c *Coordinator) facilityDeposit(ctx context.Context, amount *big.Int) error {
	return c.facilityCall(ctx, "deposit", func() error {
		return c.facility.Deposit(ctx, amount)
	})
}

func (c *Coordinator) facilityWithdraw(ctx context.Context, amount *big.Int, recipient common.Address) error {
	return c.facilityCall(ctx, "withdraw", func() error {
		return c.facility.Withdraw(ctx, amount, recipient)
	})
}

func (c *Coordinator) facilitySweep(ctx context.Context, amount *big.Int, recipient common.Address) error {
	return c.facilityCall(ctx, "sweep_float", func() error {
		return c.facility.SweepFloat(ctx, amount, recipient)
	})
}

func (c *Coordinator) facilityCall(ctx context.Context, method string, call func() error) error {
	start := time.Now()
	err := call()
	if c.metrics != nil {
		c.metrics.FacilityCalls.WithLabelValues(method).Inc()
		c.metrics.FacilityCallDur.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.FacilityFailures.WithLabelValues(method).Inc()
		}
	}
	return err
}

// auditConservation checks conservation after every open/close. A mismatch
// means a code bug corrupted the ledger, not a recoverable condition.
func (c *Coordinator) auditConservation() {
	if c.ledger.TotalLocked().Cmp(c.principal) != 0 {
		panic(fmt.Sprintf("FATAL: conservation violated: ledger=%s principal=%s",
			c.ledger.TotalLocked(), c.principal))
	}
}

func (c *Coordinator) emit(etype event.EventType, id *common.Hash, payload any, transfers []event.Transfer) {
	seq := c.sequence
	c.sequence++

	prev := c.hasher.PrevHash()
	hash := c.hasher.ComputeHash(seq, c.ledger.Digest())

	env := &event.Envelope{
		Sequence:   seq,
		OpRef:      uuid.NewString(),
		EventType:  etype,
		Identifier: id,
		Timestamp:  c.clock(),
		Payload:    payload,
		StateHash:  hash,
		PrevHash:   prev,
	}

	out := Output{Envelope: env, Transfers: transfers}

	// Persistence: blocking send, no operation record is ever lost.
	if c.outputs != nil {
		c.outputs <- out
	}

	// Projections and publishing: non-blocking, rebuildable from the log.
	if c.projections != nil {
		select {
		case c.projections <- out:
		default:
			if c.metrics != nil {
				c.metrics.ProjectionDrops.Inc()
			}
		}
	}

	if c.metrics != nil {
		c.metrics.OperationSequence.Set(float64(c.sequence))
		c.metrics.ProposalsOpen.Set(float64(c.ledger.Len()))
		locked, _ := new(big.Float).SetInt(c.ledger.TotalLocked()).Float64()
		c.metrics.LockedTotal.Set(locked)
	}
}

func (c *Coordinator) applied(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.OperationsApplied.WithLabelValues(op).Inc()
	c.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (c *Coordinator) reject(op, reason string) {
	if c.metrics != nil {
		c.metrics.OperationsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (c *Coordinator) gaugeNative() {
	if c.metrics != nil {
		native, _ := new(big.Float).SetInt(c.nativeBalance).Float64()
		c.metrics.NativeBalance.Set(native)
	}
}

func accountPath(scope string, addr common.Address) string {
	return scope + ":" + addr.Hex()
}
