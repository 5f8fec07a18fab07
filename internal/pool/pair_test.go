package pool

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/events"
	"yieldswap/internal/sim"
)

var (
	testStart   = time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC)
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000a1b2c")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	feeReceiver = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	alice       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob         = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type staticFees struct {
	share    uint32
	receiver common.Address
}

func (f staticFees) FeeInfo() (uint32, common.Address) { return f.share, f.receiver }

type pairFixture struct {
	world    *sim.World
	dai      *sim.Token
	usdc     *sim.Token
	sdai     *sim.Vault
	fusdc    *sim.Vault
	recorder *events.Recorder
	pair     *Pair
}

func newPairFixture(t *testing.T, mode PricingMode) *pairFixture {
	t.Helper()
	world := sim.NewWorld(testStart)
	dai := sim.NewToken(world, common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), "DAI", 18)
	usdc := sim.NewToken(world, common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), "USDC", 18)
	sdai := sim.NewVault(world, common.HexToAddress("0x83f20f44975d03b1b09e64809b757c47f942beea"), dai, 500)
	fusdc := sim.NewVault(world, common.HexToAddress("0x465a5a630482f3abd6d3b84b39b29b07214d19e5"), usdc, 500)
	recorder := events.NewRecorder()

	pair, err := NewPair(PairConfig{
		Address:     pairAddr,
		Factory:     factoryAddr,
		Token0:      dai,
		Token1:      usdc,
		Vault0:      sdai,
		Vault1:      fusdc,
		FeeBps0:     DefaultFeeBps,
		FeeBps1:     DefaultFeeBps,
		Mode:        mode,
		IdleBps:     DefaultIdleBps,
		EpochLength: DefaultEpochLength,
		Fees:        staticFees{share: 5000, receiver: feeReceiver},
	}, WithClock(world.Now), WithJournal(world), WithEventSink(recorder))
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	return &pairFixture{world: world, dai: dai, usdc: usdc, sdai: sdai, fusdc: fusdc, recorder: recorder, pair: pair}
}

// fund mints and approves both tokens for the pair.
func (fx *pairFixture) fund(t *testing.T, who common.Address, amount0, amount1 *big.Int) {
	t.Helper()
	for _, step := range []struct {
		token  *sim.Token
		amount *big.Int
	}{{fx.dai, amount0}, {fx.usdc, amount1}} {
		if err := step.token.Mint(who, step.amount); err != nil {
			t.Fatalf("mint %s: %v", step.token.Symbol(), err)
		}
		if err := step.token.Approve(who, pairAddr, step.amount); err != nil {
			t.Fatalf("approve %s: %v", step.token.Symbol(), err)
		}
	}
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestNewPairRejectsUnsortedTokens(t *testing.T) {
	world := sim.NewWorld(testStart)
	dai := sim.NewToken(world, common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), "DAI", 18)
	usdc := sim.NewToken(world, common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), "USDC", 18)
	_, err := NewPair(PairConfig{
		Address:     pairAddr,
		Token0:      usdc,
		Token1:      dai,
		Vault0:      sim.NewVault(world, common.HexToAddress("0x01"), usdc, 0),
		Vault1:      sim.NewVault(world, common.HexToAddress("0x02"), dai, 0),
		EpochLength: time.Hour,
		Fees:        staticFees{},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFirstDepositLocksMinimumLiquidity(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))

	minted, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if want := big.NewInt(1_999_000); minted.Cmp(want) != 0 {
		t.Fatalf("minted: got %s want %s", minted, want)
	}
	if got := fx.pair.TotalSupply(); got.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("total supply: got %s", got)
	}
	if got := fx.pair.BalanceOf(LockedLiquidityHolder); got.Cmp(big.NewInt(MinimumLiquidity)) != 0 {
		t.Fatalf("locked liquidity: got %s", got)
	}
	res := fx.pair.GetReserves()
	if res.Reserve0.Cmp(big.NewInt(1_000_000)) != 0 || res.Reserve1.Cmp(big.NewInt(4_000_000)) != 0 {
		t.Fatalf("reserves: got %s/%s", res.Reserve0, res.Reserve1)
	}
	if res.FeeBps0 != DefaultFeeBps || res.FeeBps1 != DefaultFeeBps {
		t.Fatalf("fees: got %d/%d", res.FeeBps0, res.FeeBps1)
	}

	// 80% of each deposit goes to the vault at a 1:1 rate.
	shares0, shares1 := fx.pair.VaultShares()
	if shares0.Cmp(big.NewInt(800_000)) != 0 || shares1.Cmp(big.NewInt(3_200_000)) != 0 {
		t.Fatalf("vault shares: got %s/%s", shares0, shares1)
	}
	if idle := fx.dai.BalanceOf(pairAddr); idle.Cmp(big.NewInt(200_000)) != 0 {
		t.Fatalf("idle dai: got %s", idle)
	}
}

func TestFirstDepositBelowMinimumFails(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1000), big.NewInt(1000))

	if _, err := fx.pair.Deposit(alice, alice, big.NewInt(1000), big.NewInt(1000)); !errors.Is(err, ErrInsufficientInitialLiquidity) {
		t.Fatalf("expected ErrInsufficientInitialLiquidity, got %v", err)
	}
	if fx.pair.TotalSupply().Sign() != 0 {
		t.Fatalf("supply changed after failed deposit")
	}
	if got := fx.dai.BalanceOf(alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("alice dai: got %s", got)
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	if _, err := fx.pair.Deposit(alice, alice, big.NewInt(0), big.NewInt(10)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSecondDepositMintsAgainstLimitingAsset(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(1_000_000))
	if _, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fx.fund(t, bob, big.NewInt(100_000), big.NewInt(300_000))
	minted, err := fx.pair.Deposit(bob, bob, big.NewInt(100_000), big.NewInt(300_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if want := big.NewInt(100_000); minted.Cmp(want) != 0 {
		t.Fatalf("minted: got %s want %s", minted, want)
	}
	// The excess token1 stays in the pool.
	res := fx.pair.GetReserves()
	if res.Reserve1.Cmp(big.NewInt(1_300_000)) != 0 {
		t.Fatalf("reserve1: got %s", res.Reserve1)
	}
}

func TestWithdrawRoundTrip(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))
	minted, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	out0, out1, err := fx.pair.Withdraw(alice, alice, minted)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Only the locked minimum's proportional share stays behind.
	if out0.Cmp(big.NewInt(999_500)) != 0 || out1.Cmp(big.NewInt(3_998_000)) != 0 {
		t.Fatalf("withdrawn: got %s/%s", out0, out1)
	}
	if got := fx.dai.BalanceOf(alice); got.Cmp(out0) != 0 {
		t.Fatalf("alice dai: got %s want %s", got, out0)
	}
	if got := fx.usdc.BalanceOf(alice); got.Cmp(out1) != 0 {
		t.Fatalf("alice usdc: got %s want %s", got, out1)
	}
	res := fx.pair.GetReserves()
	if res.Reserve0.Cmp(big.NewInt(500)) != 0 || res.Reserve1.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("reserves left: got %s/%s", res.Reserve0, res.Reserve1)
	}
	if got := fx.pair.TotalSupply(); got.Cmp(big.NewInt(MinimumLiquidity)) != 0 {
		t.Fatalf("supply left: got %s", got)
	}
}

func TestWithdrawInsufficientLpBalance(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(1_000_000))
	minted, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	tooMuch := new(big.Int).Add(minted, big.NewInt(1))
	if _, _, err := fx.pair.Withdraw(alice, alice, tooMuch); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("alice: expected ErrInsufficientLpBalance, got %v", err)
	}
	if _, _, err := fx.pair.Withdraw(bob, bob, big.NewInt(1)); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("bob: expected ErrInsufficientLpBalance, got %v", err)
	}
}

func TestLockedMinimumLiquidityCannotLeave(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, e18(1000), e18(1000))
	minted, err := fx.pair.Deposit(alice, alice, e18(1000), e18(1000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := fx.pair.Withdraw(alice, alice, minted); err != nil {
		t.Fatalf("withdraw alice: %v", err)
	}

	locked := big.NewInt(MinimumLiquidity)
	if _, _, err := fx.pair.Withdraw(LockedLiquidityHolder, bob, locked); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("withdraw locked: expected ErrInsufficientLpBalance, got %v", err)
	}
	if err := fx.pair.Transfer(LockedLiquidityHolder, bob, locked); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("transfer locked: expected ErrInsufficientLpBalance, got %v", err)
	}
	if err := fx.pair.Approve(LockedLiquidityHolder, bob, locked); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := fx.pair.TransferFrom(bob, LockedLiquidityHolder, bob, locked); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("transferFrom locked: expected ErrInsufficientLpBalance, got %v", err)
	}
	if _, _, err := fx.pair.WithdrawFrom(bob, LockedLiquidityHolder, bob, locked); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("withdrawFrom locked: expected ErrInsufficientLpBalance, got %v", err)
	}

	if got := fx.pair.TotalSupply(); got.Cmp(locked) != 0 {
		t.Fatalf("supply: got %s want %s", got, locked)
	}
	if got := fx.pair.BalanceOf(LockedLiquidityHolder); got.Cmp(locked) != 0 {
		t.Fatalf("locked balance: got %s", got)
	}
	res := fx.pair.GetReserves()
	if res.Reserve0.Sign() == 0 || res.Reserve1.Sign() == 0 {
		t.Fatalf("reserves drained: %s/%s", res.Reserve0, res.Reserve1)
	}
	if got := fx.dai.BalanceOf(bob); got.Sign() != 0 {
		t.Fatalf("bob dai: got %s", got)
	}
}

func TestWithdrawFromSpendsAllowance(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))
	minted, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(4_000_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, _, err := fx.pair.WithdrawFrom(bob, alice, bob, minted); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := fx.pair.Approve(alice, bob, minted); err != nil {
		t.Fatalf("approve: %v", err)
	}
	out0, out1, err := fx.pair.WithdrawFrom(bob, alice, bob, minted)
	if err != nil {
		t.Fatalf("withdrawFrom: %v", err)
	}
	if out0.Cmp(big.NewInt(999_500)) != 0 || out1.Cmp(big.NewInt(3_998_000)) != 0 {
		t.Fatalf("withdrawn: got %s/%s", out0, out1)
	}
	if got := fx.dai.BalanceOf(bob); got.Cmp(out0) != 0 {
		t.Fatalf("bob dai: got %s want %s", got, out0)
	}
	if got := fx.pair.BalanceOf(alice); got.Sign() != 0 {
		t.Fatalf("alice lp: got %s", got)
	}
	if got := fx.pair.Allowance(alice, bob); got.Sign() != 0 {
		t.Fatalf("allowance: got %s", got)
	}
}

func TestSwapConstantProductWithFee(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, e18(1000), e18(1000))
	if _, err := fx.pair.Deposit(alice, alice, e18(1000), e18(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	amountIn := e18(100)
	preview, err := fx.pair.PreviewAmountOut(fx.usdc.Address(), amountIn)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	// 3% fee: 97 of 100 reach the curve.
	afterFee := e18(97)
	want := new(big.Int).Mul(e18(1000), afterFee)
	want.Quo(want, new(big.Int).Add(e18(1000), afterFee))
	if preview.Cmp(want) != 0 {
		t.Fatalf("preview: got %s want %s", preview, want)
	}

	if err := fx.usdc.Mint(bob, amountIn); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := fx.usdc.Approve(bob, pairAddr, amountIn); err != nil {
		t.Fatalf("approve: %v", err)
	}
	out, err := fx.pair.Swap(bob, amountIn, fx.usdc.Address(), bob, nil)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(preview) != 0 {
		t.Fatalf("swap out %s differs from preview %s", out, preview)
	}
	if got := fx.dai.BalanceOf(bob); got.Cmp(out) != 0 {
		t.Fatalf("bob dai: got %s want %s", got, out)
	}

	// Half of the 3 USDC fee belongs to the receiver, outside the reserves.
	protocolFee := new(big.Int).Div(e18(3), big.NewInt(2))
	_, fee1 := fx.pair.ProtocolFees()
	if fee1.Cmp(protocolFee) != 0 {
		t.Fatalf("protocol fee: got %s want %s", fee1, protocolFee)
	}
	res := fx.pair.GetReserves()
	wantReserve1 := new(big.Int).Sub(e18(1100), protocolFee)
	wantReserve0 := new(big.Int).Sub(e18(1000), out)
	if res.Reserve0.Cmp(wantReserve0) != 0 || res.Reserve1.Cmp(wantReserve1) != 0 {
		t.Fatalf("reserves: got %s/%s want %s/%s", res.Reserve0, res.Reserve1, wantReserve0, wantReserve1)
	}

	before := new(big.Int).Mul(e18(1000), e18(1000))
	after := new(big.Int).Mul(new(big.Int).Add(e18(1000), afterFee), wantReserve0)
	if after.Cmp(before) < 0 {
		t.Fatalf("k decreased: %s < %s", after, before)
	}
}

func TestSwapRejectsForeignToken(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, e18(10), e18(10))
	if _, err := fx.pair.Deposit(alice, alice, e18(10), e18(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	weth := common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	if _, err := fx.pair.Swap(alice, e18(1), weth, alice, nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("swap: expected ErrInvalidToken, got %v", err)
	}
	if _, err := fx.pair.PreviewAmountOut(weth, e18(1)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("preview: expected ErrInvalidToken, got %v", err)
	}
}

func TestSwapOnEmptyPool(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	if _, err := fx.pair.PreviewAmountOut(fx.dai.Address(), e18(1)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestFailedTransferRevertsEarlierTransfers(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	if err := fx.dai.Mint(alice, e18(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := fx.dai.Approve(alice, pairAddr, e18(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := fx.usdc.Mint(alice, e18(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// No usdc allowance: the second pull fails after the first succeeded.
	_, err := fx.pair.Deposit(alice, alice, e18(10), e18(10))
	if !errors.Is(err, ErrExternalCallFailed) {
		t.Fatalf("expected ErrExternalCallFailed, got %v", err)
	}
	if got := fx.dai.BalanceOf(alice); got.Cmp(e18(10)) != 0 {
		t.Fatalf("alice dai not restored: %s", got)
	}
	if got := fx.dai.BalanceOf(pairAddr); got.Sign() != 0 {
		t.Fatalf("pair kept dai: %s", got)
	}
	if fx.pair.TotalSupply().Sign() != 0 {
		t.Fatalf("lp minted by failed deposit")
	}
	if evs := fx.recorder.Events(); len(evs) != 0 {
		t.Fatalf("failed deposit emitted %d events", len(evs))
	}
}

func TestReentrantSwapIsRejected(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, e18(1000), e18(1000))
	if _, err := fx.pair.Deposit(alice, alice, e18(1000), e18(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(t, bob, e18(10), e18(10))

	var reentryErr error
	fx.usdc.SetHook(func(from, to common.Address, amount *big.Int) error {
		if to != pairAddr {
			return nil
		}
		_, reentryErr = fx.pair.Swap(bob, e18(1), fx.dai.Address(), bob, nil)
		return reentryErr
	})

	before := fx.pair.GetReserves()
	_, err := fx.pair.Swap(bob, e18(10), fx.usdc.Address(), bob, nil)
	if !errors.Is(err, ErrExternalCallFailed) {
		t.Fatalf("outer swap: expected ErrExternalCallFailed, got %v", err)
	}
	if !errors.Is(reentryErr, ErrReentrant) {
		t.Fatalf("inner swap: expected ErrReentrant, got %v", reentryErr)
	}
	after := fx.pair.GetReserves()
	if before.Reserve0.Cmp(after.Reserve0) != 0 || before.Reserve1.Cmp(after.Reserve1) != 0 {
		t.Fatalf("reserves changed: %s/%s -> %s/%s", before.Reserve0, before.Reserve1, after.Reserve0, after.Reserve1)
	}
	if got := fx.usdc.BalanceOf(bob); got.Cmp(e18(10)) != 0 {
		t.Fatalf("bob usdc: got %s", got)
	}

	fx.usdc.SetHook(nil)
	if _, err := fx.pair.Swap(bob, e18(10), fx.usdc.Address(), bob, nil); err != nil {
		t.Fatalf("swap after hook removed: %v", err)
	}
}

func TestLpTransferFromSpendsAllowance(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, big.NewInt(1_000_000), big.NewInt(1_000_000))
	if _, err := fx.pair.Deposit(alice, alice, big.NewInt(1_000_000), big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := fx.pair.TransferFrom(bob, alice, bob, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := fx.pair.Approve(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := fx.pair.TransferFrom(bob, alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := fx.pair.Allowance(alice, bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("allowance: got %s", got)
	}
	if got := fx.pair.BalanceOf(bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("bob lp: got %s", got)
	}
	if err := fx.pair.Transfer(bob, alice, big.NewInt(61)); !errors.Is(err, ErrInsufficientLpBalance) {
		t.Fatalf("expected ErrInsufficientLpBalance, got %v", err)
	}
}

func TestCollectProtocolFees(t *testing.T) {
	fx := newPairFixture(t, ConstantProductMode())
	fx.fund(t, alice, e18(1000), e18(1000))
	if _, err := fx.pair.Deposit(alice, alice, e18(1000), e18(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.fund(t, bob, e18(100), e18(100))
	if _, err := fx.pair.Swap(bob, e18(100), fx.dai.Address(), bob, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	fee0, fee1, err := fx.pair.CollectProtocolFees(bob)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if want := new(big.Int).Div(e18(3), big.NewInt(2)); fee0.Cmp(want) != 0 || fee1.Sign() != 0 {
		t.Fatalf("fees: got %s/%s", fee0, fee1)
	}
	if got := fx.dai.BalanceOf(feeReceiver); got.Cmp(fee0) != 0 {
		t.Fatalf("receiver dai: got %s", got)
	}
	left0, left1 := fx.pair.ProtocolFees()
	if left0.Sign() != 0 || left1.Sign() != 0 {
		t.Fatalf("fees left: %s/%s", left0, left1)
	}
}
