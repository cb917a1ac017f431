package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI covers the PixPot contract surface used by the server and CLI.
const contractABI = `[
{"type":"function","name":"guessFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"winnerPercentage","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"revealerPercentage","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"currentGameId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAllGameIds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getGame","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
	{"name":"gameId","type":"uint256"},
	{"name":"imageHash","type":"string"},
	{"name":"answerHash","type":"bytes32"},
	{"name":"totalPixels","type":"uint256"},
	{"name":"revealedPixels","type":"uint256"},
	{"name":"poolAmount","type":"uint256"},
	{"name":"winner","type":"address"},
	{"name":"isActive","type":"bool"},
	{"name":"createdAt","type":"uint256"},
	{"name":"endedAt","type":"uint256"}]}]},
{"type":"function","name":"getCurrentGame","stateMutability":"view","inputs":[],"outputs":[
	{"name":"gameId","type":"uint256"},
	{"name":"imageHash","type":"string"},
	{"name":"totalPixels","type":"uint256"},
	{"name":"revealedPixels","type":"uint256"},
	{"name":"poolAmount","type":"uint256"},
	{"name":"winner","type":"address"},
	{"name":"isActive","type":"bool"}]},
{"type":"function","name":"getUserCommit","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[
	{"name":"commitHash","type":"bytes32"},
	{"name":"blockNumber","type":"uint256"},
	{"name":"revealed","type":"bool"},
	{"name":"canReveal","type":"bool"}]},
{"type":"function","name":"getUserContribution","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getUserPrize","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[
	{"name":"amount","type":"uint256"},
	{"name":"claimed","type":"bool"}]},
{"type":"function","name":"prizes","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[
	{"name":"winnerAmount","type":"uint256"},
	{"name":"revealerPoolAmount","type":"uint256"},
	{"name":"totalReveals","type":"uint256"},
	{"name":"winnerClaimed","type":"bool"},
	{"name":"revealsDistributed","type":"bool"}]},
{"type":"function","name":"commitGuess","stateMutability":"payable","inputs":[{"name":"gameId","type":"uint256"},{"name":"commitHash","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"revealGuess","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"},{"name":"guess","type":"string"},{"name":"secret","type":"string"}],"outputs":[]},
{"type":"function","name":"cancelCommit","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"declareWinner","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"},{"name":"answer","type":"string"},{"name":"adminSecret","type":"string"}],"outputs":[]},
{"type":"function","name":"claimWinnerPrize","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"claimMyRevealerPrize","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"claimRevealerPrizes","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"revealPixels","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"},{"name":"pixelCount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"depositToPool","stateMutability":"payable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"createGame","stateMutability":"payable","inputs":[{"name":"gameId","type":"uint256"},{"name":"imageHash","type":"string"},{"name":"answerCommitHash","type":"bytes32"},{"name":"totalPixels","type":"uint256"}],"outputs":[]},
{"type":"function","name":"setActiveGame","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"deleteGame","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
{"type":"event","name":"GameActivated","anonymous":false,"inputs":[{"name":"gameId","type":"uint256","indexed":true}]}
]`

// Method names as they appear in the ABI.
const (
	MethodCommitGuess          = "commitGuess"
	MethodRevealGuess          = "revealGuess"
	MethodCancelCommit         = "cancelCommit"
	MethodDeclareWinner        = "declareWinner"
	MethodClaimWinnerPrize     = "claimWinnerPrize"
	MethodClaimMyRevealerPrize = "claimMyRevealerPrize"
	MethodClaimRevealerPrizes  = "claimRevealerPrizes"
	MethodRevealPixels         = "revealPixels"
	MethodDepositToPool        = "depositToPool"
	MethodWithdraw             = "withdraw"
	MethodCreateGame           = "createGame"
	MethodSetActiveGame        = "setActiveGame"
	MethodDeleteGame           = "deleteGame"

	EventGameActivated = "GameActivated"
)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the parsed contract ABI.
func ABI() abi.ABI {
	return parsedABI
}
