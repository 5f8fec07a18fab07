package events

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const (
	NamePairCreated           = "PairCreated"
	NameDeposit               = "Deposit"
	NameWithdraw              = "Withdraw"
	NameSwap                  = "Swap"
	NameSync                  = "Sync"
	NameHarvest               = "Harvest"
	NameProtocolFeesCollected = "ProtocolFeesCollected"
	NameTransfer              = "Transfer"
)

// Event is an observable state change emitted by a pair or the factory.
type Event interface {
	EventName() string
	Emitter() common.Address
}

// PairCreated is emitted by the factory when a pair is registered.
type PairCreated struct {
	Factory common.Address
	Token0  common.Address
	Token1  common.Address
	Pair    common.Address
	Vault0  common.Address
	Vault1  common.Address
	Stable  bool
	Index   uint64
}

func (e PairCreated) EventName() string       { return NamePairCreated }
func (e PairCreated) Emitter() common.Address { return e.Factory }

// Deposit records liquidity added to a pair.
type Deposit struct {
	Pair      common.Address
	Sender    common.Address
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Liquidity *big.Int
}

func (e Deposit) EventName() string       { return NameDeposit }
func (e Deposit) Emitter() common.Address { return e.Pair }

// Withdraw records liquidity removed from a pair.
type Withdraw struct {
	Pair      common.Address
	Sender    common.Address
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Liquidity *big.Int
}

func (e Withdraw) EventName() string       { return NameWithdraw }
func (e Withdraw) Emitter() common.Address { return e.Pair }

// Swap records a trade; ProtocolFee is the part of the fee owed to the receiver.
type Swap struct {
	Pair        common.Address
	Sender      common.Address
	Recipient   common.Address
	TokenIn     common.Address
	AmountIn    *big.Int
	AmountOut   *big.Int
	ProtocolFee *big.Int
}

func (e Swap) EventName() string       { return NameSwap }
func (e Swap) Emitter() common.Address { return e.Pair }

// Sync carries the accounted reserves after a committed operation.
type Sync struct {
	Pair     common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (e Sync) EventName() string       { return NameSync }
func (e Sync) Emitter() common.Address { return e.Pair }

// Harvest records yield credited to reserves for an epoch.
type Harvest struct {
	Pair   common.Address
	Caller common.Address
	Epoch  uint64
	Yield0 *big.Int
	Yield1 *big.Int
}

func (e Harvest) EventName() string       { return NameHarvest }
func (e Harvest) Emitter() common.Address { return e.Pair }

// ProtocolFeesCollected records swap fees paid out to the fee receiver.
type ProtocolFeesCollected struct {
	Pair     common.Address
	Receiver common.Address
	Amount0  *big.Int
	Amount1  *big.Int
}

func (e ProtocolFeesCollected) EventName() string       { return NameProtocolFeesCollected }
func (e ProtocolFeesCollected) Emitter() common.Address { return e.Pair }

// Transfer is an LP token movement. Mints come from and burns go to the zero address.
type Transfer struct {
	Pair  common.Address
	From  common.Address
	To    common.Address
	Value *big.Int
}

func (e Transfer) EventName() string       { return NameTransfer }
func (e Transfer) Emitter() common.Address { return e.Pair }

// Recorder collects emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Drain returns recorded events and resets the recorder.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
