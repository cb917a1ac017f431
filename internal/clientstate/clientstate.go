// Package clientstate persists CLI-side protocol state in LevelDB.
package clientstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"pixpot/internal/game"
	"pixpot/internal/protocol"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	declarationPrefix = "decl:"
	lastGamePrefix    = "game:last:"
)

// Store implements protocol.DeclarationStore. Admin secrets are written to
// disk, so the directory should be private to the user.
type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func declarationKey(address string, gameID uint64) []byte {
	return []byte(declarationPrefix + game.NormalizeAddress(address) + ":" + strconv.FormatUint(gameID, 10))
}

func (s *Store) SaveDeclaration(decl protocol.Declaration) error {
	data, err := json.Marshal(decl)
	if err != nil {
		return err
	}
	return s.db.Put(declarationKey(decl.Address, decl.GameID), data, nil)
}

func (s *Store) LoadDeclaration(address string, gameID uint64) (*protocol.Declaration, error) {
	data, err := s.db.Get(declarationKey(address, gameID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var decl protocol.Declaration
	if err := json.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("decode declaration: %w", err)
	}
	return &decl, nil
}

func (s *Store) DeleteDeclaration(address string, gameID uint64) error {
	return s.db.Delete(declarationKey(address, gameID), nil)
}

// Declarations lists every stored declaration for address.
func (s *Store) Declarations(address string) ([]protocol.Declaration, error) {
	prefix := []byte(declarationPrefix + game.NormalizeAddress(address) + ":")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []protocol.Declaration
	for iter.Next() {
		var decl protocol.Declaration
		if err := json.Unmarshal(iter.Value(), &decl); err != nil {
			return nil, fmt.Errorf("decode declaration %q: %w", iter.Key(), err)
		}
		out = append(out, decl)
	}
	return out, iter.Error()
}

// SetLastGame remembers the game address last played, for recover without arguments.
func (s *Store) SetLastGame(address string, gameID uint64) error {
	key := []byte(lastGamePrefix + game.NormalizeAddress(address))
	return s.db.Put(key, []byte(strconv.FormatUint(gameID, 10)), nil)
}

func (s *Store) LastGame(address string) (uint64, error) {
	value, err := s.db.Get([]byte(lastGamePrefix+game.NormalizeAddress(address)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(value), 10, 64)
}
