package clientstate

import (
	"path/filepath"
	"testing"
	"time"

	"pixpot/internal/protocol"

	"github.com/ethereum/go-ethereum/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDeclarationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	decl := protocol.Declaration{
		Address:     "0x00000000000000000000000000000000000000A1",
		GameID:      3,
		Guess:       "red",
		AdminSecret: "S",
		RevealTx:    common.HexToHash("0x02"),
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}
	if err := store.SaveDeclaration(decl); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadDeclaration("0x00000000000000000000000000000000000000a1", 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.AdminSecret != "S" || got.RevealTx != decl.RevealTx || !got.CreatedAt.Equal(decl.CreatedAt) {
		t.Fatalf("unexpected declaration %+v", got)
	}

	if err := store.DeleteDeclaration(decl.Address, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, err := store.LoadDeclaration(decl.Address, 3); err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %+v, %v", got, err)
	}
}

func TestDeclarationsScopedByAddress(t *testing.T) {
	store := openTestStore(t)
	for _, decl := range []protocol.Declaration{
		{Address: "0xaa", GameID: 1, Guess: "a"},
		{Address: "0xaa", GameID: 2, Guess: "b"},
		{Address: "0xbb", GameID: 1, Guess: "c"},
	} {
		if err := store.SaveDeclaration(decl); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	decls, err := store.Declarations("0xAA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
}

func TestLastGame(t *testing.T) {
	store := openTestStore(t)
	if id, err := store.LastGame("0xaa"); err != nil || id != 0 {
		t.Fatalf("expected empty last game, got %d, %v", id, err)
	}
	if err := store.SetLastGame("0xAA", 9); err != nil {
		t.Fatalf("set last game: %v", err)
	}
	if id, err := store.LastGame("0xaa"); err != nil || id != 9 {
		t.Fatalf("last game = %d, %v", id, err)
	}
}

var _ protocol.DeclarationStore = (*Store)(nil)
