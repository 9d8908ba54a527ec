package escrow_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
	"github.com/GiG2Hire/gig-contract/internal/event"
	"github.com/GiG2Hire/gig-contract/internal/lending"
	"github.com/GiG2Hire/gig-contract/internal/observability"
	"github.com/GiG2Hire/gig-contract/internal/token"
)

var (
	assetAddr    = common.Address{0xa5}
	holdingAddr  = common.Address{0xe5}
	facilityAddr = common.Address{0xfa}
	adminAddr    = common.Address{0xad}
	clientAddr   = common.Address{0xc1}
	freelancer   = common.Address{0xf1}
	outsider     = common.Address{0x0d}
)

// fixture wires a coordinator to in-memory ports for one facility variant.
type fixture struct {
	coord   *escrow.Coordinator
	book    *token.Memory
	native  *token.NativeMemory
	outputs chan escrow.Output

	// supplied reports the facility's position for the holding account.
	supplied func() *big.Int
	// accrue simulates interest landing on the facility position.
	accrue func(*big.Int)
}

var variants = []string{"pool", "comet"}

func newFixture(t *testing.T, variant string) *fixture {
	t.Helper()

	book := token.NewMemory(assetAddr, holdingAddr)
	native := token.NewNativeMemory(holdingAddr)
	outputs := make(chan escrow.Output, 128)

	var facility escrow.Facility
	var supplied func() *big.Int
	var accrue func(*big.Int)

	switch variant {
	case "pool":
		client := lending.NewMemoryPool(facilityAddr, holdingAddr, book)
		facility = lending.NewPool(client, facilityAddr, assetAddr, holdingAddr)
		supplied = func() *big.Int {
			b, err := client.SuppliedBalance(context.Background(), holdingAddr)
			if err != nil {
				t.Fatalf("supplied balance: %v", err)
			}
			return b
		}
		accrue = client.AccrueYield
	case "comet":
		client := lending.NewMemoryComet(facilityAddr, holdingAddr, book)
		facility = lending.NewComet(client, facilityAddr, assetAddr, holdingAddr, book)
		supplied = func() *big.Int {
			b, err := client.BalanceOf(context.Background(), holdingAddr)
			if err != nil {
				t.Fatalf("facility balance: %v", err)
			}
			return b
		}
		accrue = client.AccrueYield
	default:
		t.Fatalf("unknown variant %q", variant)
	}

	coord, err := escrow.NewCoordinator(context.Background(), escrow.Config{
		Token:    book,
		Facility: facility,
		Native:   native,
		Holding:  holdingAddr,
		Admin:    adminAddr,
		Clock:    fixedClock(1700000000),
		Metrics:  observability.NewMetricsWith(prometheus.NewRegistry()),
		Logger:   observability.NewLoggerWithLevel("test", zerolog.Disabled),
		Outputs:  outputs,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	return &fixture{
		coord:    coord,
		book:     book,
		native:   native,
		outputs:  outputs,
		supplied: supplied,
		accrue:   accrue,
	}
}

// fund mints asset to the client and authorizes the holding account.
func (f *fixture) fund(account common.Address, amount int64) {
	f.book.Mint(account, big.NewInt(amount))
	f.book.ApproveFrom(account, holdingAddr, big.NewInt(amount))
}

func (f *fixture) balance(t *testing.T, account common.Address) *big.Int {
	t.Helper()
	b, err := f.book.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return b
}

// drainOutputs empties the output channel and returns the envelopes seen.
func (f *fixture) drainOutputs() []*event.Envelope {
	var envs []*event.Envelope
	for {
		select {
		case out := <-f.outputs:
			envs = append(envs, out.Envelope)
		default:
			return envs
		}
	}
}

// checkConservation asserts ledger sum == facility principal.
func (f *fixture) checkConservation(t *testing.T) {
	t.Helper()
	locked := f.coord.TotalLocked()
	pos := f.supplied()
	if locked.Cmp(pos) != 0 {
		t.Fatalf("conservation violated: ledger=%s facility=%s", locked, pos)
	}
}

// ============================================================================
// Test: OpenProposal
// ============================================================================

func TestCoordinator_OpenProposalLocksAndSupplies(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			id, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if id == (common.Hash{}) {
				t.Fatal("identifier must not be zero")
			}

			if got := f.balance(t, clientAddr); got.Cmp(big.NewInt(600)) != 0 {
				t.Errorf("client balance got %s, want 600", got)
			}
			if got := f.supplied(); got.Cmp(big.NewInt(400)) != 0 {
				t.Errorf("facility position got %s, want 400", got)
			}
			if got := f.coord.TotalLocked(); got.Cmp(big.NewInt(400)) != 0 {
				t.Errorf("total locked got %s, want 400", got)
			}
			f.checkConservation(t)
		})
	}
}

func TestCoordinator_OpenProposalZeroAmountRejected(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			_, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(0))
			if !errors.Is(err, escrow.ErrAmountIsZero) {
				t.Fatalf("got %v, want ErrAmountIsZero", err)
			}
			if len(f.coord.OpenProposals()) != 0 {
				t.Error("ledger must stay empty after rejected open")
			}
			if envs := f.drainOutputs(); len(envs) != 0 {
				t.Errorf("no event expected for a failed operation, got %d", len(envs))
			}
		})
	}
}

func TestCoordinator_OpenProposalWithoutAuthorizationRejected(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			// Balance but no allowance.
			f.book.Mint(clientAddr, big.NewInt(1000))

			_, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
			if !errors.Is(err, escrow.ErrTransferFailed) {
				t.Fatalf("got %v, want ErrTransferFailed", err)
			}
			if got := f.balance(t, clientAddr); got.Cmp(big.NewInt(1000)) != 0 {
				t.Errorf("client balance got %s, want 1000 (untouched)", got)
			}
			if len(f.coord.OpenProposals()) != 0 {
				t.Error("ledger must stay empty after rejected open")
			}
			if envs := f.drainOutputs(); len(envs) != 0 {
				t.Errorf("no event expected for a failed operation, got %d", len(envs))
			}
		})
	}
}

func TestCoordinator_OpenProposalDistinctIdentifiers(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	a, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(100))
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	b, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(100))
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if a == b {
		t.Fatal("same caller and amount must still produce distinct identifiers")
	}
	f.checkConservation(t)
}

func TestCoordinator_OpenProposalDepositFailureCompensates(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	broken := &failingFacility{Facility: poolFacility(t, f), failDeposit: true}
	coord := rewire(t, f, broken)

	_, err := coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
	if err == nil {
		t.Fatal("open must fail when the facility deposit fails")
	}

	// The pull must have been refunded and the ledger left empty.
	if got := f.balance(t, clientAddr); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("client balance got %s, want 1000 after refund", got)
	}
	if len(coord.OpenProposals()) != 0 {
		t.Error("ledger must stay empty after compensated open")
	}
	if got := coord.TotalLocked(); got.Sign() != 0 {
		t.Errorf("total locked got %s, want 0", got)
	}
}

// ============================================================================
// Test: CloseProposal
// ============================================================================

func TestCoordinator_CloseProposalRoundTrip(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			id, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
			if err != nil {
				t.Fatalf("open: %v", err)
			}

			if err := f.coord.CloseProposal(context.Background(), clientAddr, id, clientAddr); err != nil {
				t.Fatalf("close: %v", err)
			}

			if got := f.balance(t, clientAddr); got.Cmp(big.NewInt(1000)) != 0 {
				t.Errorf("client balance got %s, want 1000 after round trip", got)
			}
			if _, ok := f.coord.Proposal(id); ok {
				t.Error("proposal must be absent after close")
			}
			if got := f.supplied(); got.Sign() != 0 {
				t.Errorf("facility position got %s, want 0", got)
			}
			f.checkConservation(t)

			// Re-closing the same identifier fails.
			err = f.coord.CloseProposal(context.Background(), clientAddr, id, clientAddr)
			if !errors.Is(err, escrow.ErrUnknownProposal) {
				t.Fatalf("re-close got %v, want ErrUnknownProposal", err)
			}
		})
	}
}

func TestCoordinator_CloseProposalBearerRedirects(t *testing.T) {
	// Party X opens; party Y, knowing only the identifier, closes and
	// redirects the funds to Z. Possession of the identifier is the only
	// credential.
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			id, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
			if err != nil {
				t.Fatalf("open: %v", err)
			}

			if err := f.coord.CloseProposal(context.Background(), outsider, id, freelancer); err != nil {
				t.Fatalf("bearer close must succeed, got %v", err)
			}
			if got := f.balance(t, freelancer); got.Cmp(big.NewInt(400)) != 0 {
				t.Errorf("redirected balance got %s, want 400", got)
			}
			f.checkConservation(t)
		})
	}
}

func TestCoordinator_CloseProposalZeroRecipientPaysCaller(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	id, err := f.coord.OpenProposal(context.Background(), clientAddr, big.NewInt(300))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := f.coord.CloseProposal(context.Background(), freelancer, id, common.Address{}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := f.balance(t, freelancer); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("caller balance got %s, want 300", got)
	}
}

func TestCoordinator_CloseProposalUnknownIdentifier(t *testing.T) {
	f := newFixture(t, "pool")

	err := f.coord.CloseProposal(context.Background(), clientAddr, common.Hash{0xff}, clientAddr)
	if !errors.Is(err, escrow.ErrUnknownProposal) {
		t.Fatalf("got %v, want ErrUnknownProposal", err)
	}
	if envs := f.drainOutputs(); len(envs) != 0 {
		t.Errorf("no event expected for a failed operation, got %d", len(envs))
	}
}

func TestCoordinator_CloseProposalWithdrawFailureReinserts(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	broken := &failingFacility{Facility: poolFacility(t, f)}
	coord := rewire(t, f, broken)

	id, err := coord.OpenProposal(context.Background(), clientAddr, big.NewInt(400))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	broken.failWithdraw = true
	if err := coord.CloseProposal(context.Background(), clientAddr, id, clientAddr); err == nil {
		t.Fatal("close must fail when the facility withdraw fails")
	}

	// The entry must be back and closable once the facility recovers.
	if _, ok := coord.Proposal(id); !ok {
		t.Fatal("proposal must be reinserted after failed withdraw")
	}
	broken.failWithdraw = false
	if err := coord.CloseProposal(context.Background(), clientAddr, id, clientAddr); err != nil {
		t.Fatalf("close after recovery: %v", err)
	}
	if got := f.balance(t, clientAddr); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("client balance got %s, want 1000", got)
	}
}

// ============================================================================
// Test: conservation across interleaved operations
// ============================================================================

func TestCoordinator_ConservationAcrossSequences(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 10_000)

			ctx := context.Background()
			var ids []common.Hash
			for _, amount := range []int64{100, 250, 1, 999, 5000} {
				id, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(amount))
				if err != nil {
					t.Fatalf("open %d: %v", amount, err)
				}
				ids = append(ids, id)
				f.checkConservation(t)
			}

			for _, i := range []int{1, 3, 0} {
				if err := f.coord.CloseProposal(ctx, clientAddr, ids[i], freelancer); err != nil {
					t.Fatalf("close %d: %v", i, err)
				}
				f.checkConservation(t)
			}

			// 100+250+999 closed, 1+5000 still open.
			if got := f.coord.TotalLocked(); got.Cmp(big.NewInt(5001)) != 0 {
				t.Errorf("total locked got %s, want 5001", got)
			}
		})
	}
}

// ============================================================================
// Test: million-unit scenario
// ============================================================================

func TestCoordinator_MillionUnitScenario(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1_000_000)

			ctx := context.Background()
			id, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(1_000_000))
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if got := f.supplied(); got.Cmp(big.NewInt(1_000_000)) != 0 {
				t.Fatalf("facility supply got %s, want 1000000", got)
			}

			if err := f.coord.CloseProposal(ctx, clientAddr, id, freelancer); err != nil {
				t.Fatalf("close: %v", err)
			}
			if got := f.balance(t, freelancer); got.Cmp(big.NewInt(1_000_000)) != 0 {
				t.Errorf("freelancer balance got %s, want exactly 1000000", got)
			}
			if got := f.supplied(); got.Sign() != 0 {
				t.Errorf("facility supply got %s, want 0", got)
			}
			if _, ok := f.coord.Proposal(id); ok {
				t.Error("ledger entry must revert to absent")
			}
		})
	}
}

// ============================================================================
// Test: administrative operations
// ============================================================================

func TestCoordinator_WithdrawFloatAdminOnly(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)

			err := f.coord.WithdrawFloat(context.Background(), outsider, big.NewInt(1))
			if !errors.Is(err, escrow.ErrIncorrectWallet) {
				t.Fatalf("got %v, want ErrIncorrectWallet", err)
			}
		})
	}
}

func TestCoordinator_WithdrawFloatSweepsYield(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			ctx := context.Background()
			if _, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(1000)); err != nil {
				t.Fatalf("open: %v", err)
			}

			f.accrue(big.NewInt(50))

			if err := f.coord.WithdrawFloat(ctx, adminAddr, big.NewInt(50)); err != nil {
				t.Fatalf("withdraw float: %v", err)
			}
			if got := f.balance(t, adminAddr); got.Cmp(big.NewInt(50)) != 0 {
				t.Errorf("admin balance got %s, want 50", got)
			}
		})
	}
}

func TestCoordinator_WithdrawFloatExceedsWithdrawable(t *testing.T) {
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			f := newFixture(t, variant)
			f.fund(clientAddr, 1000)

			ctx := context.Background()
			if _, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(100)); err != nil {
				t.Fatalf("open: %v", err)
			}

			err := f.coord.WithdrawFloat(ctx, adminAddr, big.NewInt(1_000_000))
			if !errors.Is(err, escrow.ErrIncorrectAmount) {
				t.Fatalf("got %v, want ErrIncorrectAmount", err)
			}
			// No balances moved.
			if got := f.balance(t, adminAddr); got.Sign() != 0 {
				t.Errorf("admin balance got %s, want 0", got)
			}
			if got := f.supplied(); got.Cmp(big.NewInt(100)) != 0 {
				t.Errorf("facility position got %s, want 100", got)
			}
		})
	}
}

func TestCoordinator_WithdrawNative(t *testing.T) {
	f := newFixture(t, "pool")
	f.native.Credit(big.NewInt(777))
	f.coord.ReceiveNative(outsider, big.NewInt(777))

	if err := f.coord.WithdrawNative(context.Background(), outsider); !errors.Is(err, escrow.ErrIncorrectWallet) {
		t.Fatalf("non-admin got %v, want ErrIncorrectWallet", err)
	}

	if err := f.coord.WithdrawNative(context.Background(), adminAddr); err != nil {
		t.Fatalf("withdraw native: %v", err)
	}
	got, err := f.native.BalanceOf(context.Background(), adminAddr)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if got.Cmp(big.NewInt(777)) != 0 {
		t.Errorf("admin native balance got %s, want 777", got)
	}
	if f.coord.NativeBalance().Sign() != 0 {
		t.Error("native balance must be zero after sweep")
	}
}

func TestCoordinator_ChangeAdministrator(t *testing.T) {
	f := newFixture(t, "pool")
	newAdmin := common.Address{0xbb}

	if err := f.coord.ChangeAdministrator(context.Background(), outsider, newAdmin); !errors.Is(err, escrow.ErrIncorrectWallet) {
		t.Fatalf("non-admin got %v, want ErrIncorrectWallet", err)
	}

	if err := f.coord.ChangeAdministrator(context.Background(), adminAddr, newAdmin); err != nil {
		t.Fatalf("change administrator: %v", err)
	}
	if got := f.coord.Admin(); got != newAdmin {
		t.Errorf("admin got %s, want %s", got, newAdmin)
	}

	// The old administrator is locked out immediately.
	err := f.coord.WithdrawNative(context.Background(), adminAddr)
	if !errors.Is(err, escrow.ErrIncorrectWallet) {
		t.Fatalf("old admin got %v, want ErrIncorrectWallet", err)
	}
}

func TestCoordinator_ReceiveNativeNeverFails(t *testing.T) {
	f := newFixture(t, "pool")

	f.coord.ReceiveNative(outsider, big.NewInt(10))
	f.coord.ReceiveNative(outsider, nil)
	f.coord.ReceiveNative(outsider, big.NewInt(-5))
	f.coord.ReceiveNative(outsider, big.NewInt(15))

	if got := f.coord.NativeBalance(); got.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("native balance got %s, want 25", got)
	}
}

// ============================================================================
// Test: operation log
// ============================================================================

func TestCoordinator_EventsOnlyAfterSuccess(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	ctx := context.Background()
	id, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(100))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Two failures that must not emit.
	f.coord.OpenProposal(ctx, clientAddr, big.NewInt(0))
	f.coord.CloseProposal(ctx, clientAddr, common.Hash{0xff}, clientAddr)

	if err := f.coord.CloseProposal(ctx, clientAddr, id, clientAddr); err != nil {
		t.Fatalf("close: %v", err)
	}

	envs := f.drainOutputs()
	if len(envs) != 2 {
		t.Fatalf("envelope count got %d, want 2", len(envs))
	}
	if envs[0].EventType != event.EventTypeProposalOpened {
		t.Errorf("first event got %s, want ProposalOpened", envs[0].EventType)
	}
	if envs[1].EventType != event.EventTypeProposalClosed {
		t.Errorf("second event got %s, want ProposalClosed", envs[1].EventType)
	}
}

func TestCoordinator_EnvelopeChainIsLinked(t *testing.T) {
	f := newFixture(t, "pool")
	f.fund(clientAddr, 1000)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.coord.OpenProposal(ctx, clientAddr, big.NewInt(10)); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	envs := f.drainOutputs()
	if len(envs) != 3 {
		t.Fatalf("envelope count got %d, want 3", len(envs))
	}
	for i, env := range envs {
		if env.Sequence != int64(i) {
			t.Errorf("sequence got %d, want %d", env.Sequence, i)
		}
		if env.OpRef == "" {
			t.Error("op_ref must be set")
		}
		if i > 0 && env.PrevHash != envs[i-1].StateHash {
			t.Errorf("envelope %d prev hash does not match predecessor", i)
		}
	}
}

// ============================================================================
// Test: construction
// ============================================================================

func TestNewCoordinator_RejectsMissingToken(t *testing.T) {
	_, err := escrow.NewCoordinator(context.Background(), escrow.Config{
		Admin: adminAddr,
	})
	if !errors.Is(err, escrow.ErrInvalidAssetToken) {
		t.Fatalf("got %v, want ErrInvalidAssetToken", err)
	}
}

func TestNewCoordinator_RejectsZeroAdmin(t *testing.T) {
	book := token.NewMemory(assetAddr, holdingAddr)
	client := lending.NewMemoryPool(facilityAddr, holdingAddr, book)
	facility := lending.NewPool(client, facilityAddr, assetAddr, holdingAddr)

	_, err := escrow.NewCoordinator(context.Background(), escrow.Config{
		Token:    book,
		Facility: facility,
	})
	if !errors.Is(err, escrow.ErrIncorrectWallet) {
		t.Fatalf("got %v, want ErrIncorrectWallet", err)
	}
}

// ============================================================================
// Failure-injection helpers
// ============================================================================

var errFacilityDown = errors.New("facility down")

// failingFacility wraps a real facility and fails selected calls.
type failingFacility struct {
	escrow.Facility
	failDeposit  bool
	failWithdraw bool
}

func (f *failingFacility) Deposit(ctx context.Context, amount *big.Int) error {
	if f.failDeposit {
		return errFacilityDown
	}
	return f.Facility.Deposit(ctx, amount)
}

func (f *failingFacility) Withdraw(ctx context.Context, amount *big.Int, recipient common.Address) error {
	if f.failWithdraw {
		return errFacilityDown
	}
	return f.Facility.Withdraw(ctx, amount, recipient)
}

func poolFacility(t *testing.T, f *fixture) escrow.Facility {
	t.Helper()
	client := lending.NewMemoryPool(facilityAddr, holdingAddr, f.book)
	return lending.NewPool(client, facilityAddr, assetAddr, holdingAddr)
}

// rewire builds a second coordinator over the fixture's books with the
// given facility, for failure-injection tests.
func rewire(t *testing.T, f *fixture, facility escrow.Facility) *escrow.Coordinator {
	t.Helper()
	coord, err := escrow.NewCoordinator(context.Background(), escrow.Config{
		Token:    f.book,
		Facility: facility,
		Native:   f.native,
		Holding:  holdingAddr,
		Admin:    adminAddr,
		Clock:    fixedClock(1700000000),
		Metrics:  observability.NewMetricsWith(prometheus.NewRegistry()),
		Logger:   observability.NewLoggerWithLevel("test", zerolog.Disabled),
		Outputs:  f.outputs,
	})
	if err != nil {
		t.Fatalf("rewire coordinator: %v", err)
	}
	return coord
}
