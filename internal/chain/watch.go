package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

var errNotGameActivated = errors.New("log is not a GameActivated event")

// WatchGameActivated streams the ids of newly activated games into sink. It
// requires a backend that supports log subscriptions (websocket or IPC).
func (g *Gateway) WatchGameActivated(ctx context.Context, sink chan<- uint64) (event.Subscription, error) {
	logs, sub, err := g.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, EventGameActivated)
	if err != nil {
		return nil, Classify(err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case entry := <-logs:
				gameID, err := decodeGameActivated(entry)
				if err != nil {
					g.log.Warnw("skipping log", "tx", entry.TxHash.Hex(), "error", err)
					continue
				}
				select {
				case sink <- gameID:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func decodeGameActivated(entry types.Log) (uint64, error) {
	activated := parsedABI.Events[EventGameActivated]
	if len(entry.Topics) < 2 || entry.Topics[0] != activated.ID {
		return 0, errNotGameActivated
	}
	return toUint64(new(big.Int).SetBytes(entry.Topics[1].Bytes())), nil
}
