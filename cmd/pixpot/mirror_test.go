package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"pixpot/internal/apiclient"

	"github.com/ethereum/go-ethereum/common"
)

type stubAPI struct {
	activateErr error
	deleteErr   error
	activated   []uint64
	deleted     []uint64
}

func (s *stubAPI) Activate(ctx context.Context, req apiclient.ActivateRequest) (*apiclient.Activation, error) {
	s.activated = append(s.activated, *req.OnchainGameID)
	if s.activateErr != nil {
		return nil, s.activateErr
	}
	return &apiclient.Activation{OnchainGameID: req.OnchainGameID, PoolAmount: *req.PoolAmount}, nil
}

func (s *stubAPI) DeleteGame(ctx context.Context, onchainGameID uint64) error {
	s.deleted = append(s.deleted, onchainGameID)
	return s.deleteErr
}

func TestMirrorActivation(t *testing.T) {
	tx := common.HexToHash("0xabc123")
	api := &stubAPI{}
	activation, err := mirrorActivation(context.Background(), api, 7, "1.5", tx)
	if err != nil {
		t.Fatalf("mirror activation: %v", err)
	}
	if activation.PoolAmount != "1.5" || len(api.activated) != 1 || api.activated[0] != 7 {
		t.Fatalf("unexpected activation %#v (calls %v)", activation, api.activated)
	}

	down := &apiclient.APIError{Status: http.StatusBadGateway}
	_, err = mirrorActivation(context.Background(), &stubAPI{activateErr: down}, 7, "1.5", tx)
	if !errors.Is(err, errMirrorLagging) || !errors.Is(err, down) {
		t.Fatalf("expected lagging mirror wrapping the api error, got %v", err)
	}
	for _, want := range []string{tx.Hex(), "pixpot admin-mirror -game 7"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestMirrorDeletion(t *testing.T) {
	tx := common.HexToHash("0xdef456")
	tests := []struct {
		name    string
		err     error
		lagging bool
	}{
		{"deleted", nil, false},
		{"never mirrored", &apiclient.APIError{Status: http.StatusNotFound}, false},
		{"api failure", &apiclient.APIError{Status: http.StatusInternalServerError, Message: "internal error"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAPI{deleteErr: tc.err}
			err := mirrorDeletion(context.Background(), api, 9, tx)
			if len(api.deleted) != 1 || api.deleted[0] != 9 {
				t.Fatalf("expected one delete call for game 9, got %v", api.deleted)
			}
			if got := errors.Is(err, errMirrorLagging); got != tc.lagging {
				t.Fatalf("lagging = %v, want %v (err %v)", got, tc.lagging, err)
			}
			if tc.lagging && !strings.Contains(err.Error(), "-delete") {
				t.Fatalf("expected retry hint in %q", err.Error())
			}
		})
	}
}
