package state

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketAccounts        = []byte("accounts")
	bucketLendingMarkets  = []byte("lending_markets")
	bucketPositions       = []byte("lending_positions")
	bucketRegistryMarkets = []byte("registry_markets")
	bucketRegistryEntered = []byte("registry_entered")
	bucketNftClaims       = []byte("nft_claims")
	bucketNftTokens       = []byte("nft_tokens")
	bucketAuctions        = []byte("auctions")
)

// Manager owns the bbolt database and hands out per-engine store adapters.
// All values are JSON encoded; composite keys are fixed-width address and
// token id bytes so prefix scans stay cheap.
type Manager struct {
	db *bolt.DB
}

// Open creates or opens the database file and ensures every bucket exists.
func Open(path string) (*Manager, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketAccounts,
			bucketLendingMarkets,
			bucketPositions,
			bucketRegistryMarkets,
			bucketRegistryEntered,
			bucketNftClaims,
			bucketNftTokens,
			bucketAuctions,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create buckets: %w", err)
	}
	return &Manager{db: db}, nil
}

// Close releases the database file.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func tokenKey(scope common.Address, tokenID uint64) []byte {
	key := make([]byte, common.AddressLength+8)
	copy(key, scope.Bytes())
	binary.BigEndian.PutUint64(key[common.AddressLength:], tokenID)
	return key
}

func scopedKey(scope, addr common.Address) []byte {
	key := make([]byte, 2*common.AddressLength)
	copy(key, scope.Bytes())
	copy(key[common.AddressLength:], addr.Bytes())
	return key
}
