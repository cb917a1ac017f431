package protocol

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type State string

const (
	StateIdle               State = "idle"
	StateCommitting         State = "committing"
	StateAwaitingConfirm    State = "awaiting_confirm"
	StateAwaitingBlockDelay State = "awaiting_block_delay"
	StateRevealing          State = "revealing"
	StateVerifying          State = "verifying"
	StateWinnerPending      State = "winner_pending"
	StateDeclaringWinner    State = "declaring_winner"
	StateCompleted          State = "completed"
	StateCancelling         State = "cancelling"
)

var transitions = map[State][]State{
	StateIdle:               {StateCommitting, StateAwaitingBlockDelay, StateWinnerPending, StateCompleted},
	StateCommitting:         {StateAwaitingConfirm, StateIdle},
	StateAwaitingConfirm:    {StateAwaitingBlockDelay, StateCancelling, StateIdle},
	StateAwaitingBlockDelay: {StateRevealing, StateCancelling, StateIdle},
	StateRevealing:          {StateVerifying, StateAwaitingBlockDelay, StateIdle},
	StateVerifying:          {StateWinnerPending, StateIdle},
	StateWinnerPending:      {StateDeclaringWinner, StateIdle},
	StateDeclaringWinner:    {StateCompleted, StateWinnerPending},
	StateCompleted:          {StateIdle, StateCommitting},
	StateCancelling:         {StateIdle, StateAwaitingConfirm, StateAwaitingBlockDelay},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Declaration is a verified correct guess waiting for its declareWinner
// transaction. It survives restarts through a DeclarationStore.
type Declaration struct {
	Address     string      `json:"address"`
	GameID      uint64      `json:"gameId"`
	Guess       string      `json:"guess"`
	AdminSecret string      `json:"adminSecret"`
	RevealTx    common.Hash `json:"revealTx"`
	DeclareTx   common.Hash `json:"declareTx,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type commitInfo struct {
	hash      common.Hash
	tx        common.Hash
	block     uint64
	guess     string
	secret    string
	recovered bool
}

func (c *commitInfo) hasSecret() bool { return c != nil && c.secret != "" }

// Snapshot is a point-in-time copy of the protocol state.
type Snapshot struct {
	State              State       `json:"state"`
	Address            string      `json:"address"`
	GameID             uint64      `json:"gameId"`
	CommitHash         common.Hash `json:"commitHash"`
	CommitTx           common.Hash `json:"commitTx"`
	CommitBlock        uint64      `json:"commitBlock"`
	RevealTx           common.Hash `json:"revealTx"`
	DeclareTx          common.Hash `json:"declareTx"`
	HasSecret          bool        `json:"hasSecret"`
	Recovered          bool        `json:"recovered"`
	PendingDeclaration bool        `json:"pendingDeclaration"`
	MirrorPending      bool        `json:"mirrorPending"`
	Message            string      `json:"message,omitempty"`
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s game=%d", s.State, s.GameID)
}
