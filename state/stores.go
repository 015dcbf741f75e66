package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"

	"github.com/phoebe87124/appworks-final-project/core/types"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
)

func (m *Manager) get(bucket, key []byte, out any) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: database not open")
	}
	var found bool
	err := m.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get(key)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, out)
	})
	return found, err
}

func (m *Manager) put(bucket, key []byte, value any) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not open")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", bucket, err)
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, raw)
	})
}

func (m *Manager) delete(bucket, key []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not open")
	}
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// AccountStore reads and writes native account balances. Shared by every
// pool engine.
type AccountStore struct {
	m *Manager
}

// Accounts returns the shared account balance store.
func (m *Manager) Accounts() *AccountStore { return &AccountStore{m: m} }

// GetAccount loads an account, returning nil when it has never been written.
func (s *AccountStore) GetAccount(addr common.Address) (*types.Account, error) {
	var acc types.Account
	found, err := s.m.get(bucketAccounts, addr.Bytes(), &acc)
	if err != nil || !found {
		return nil, err
	}
	return &acc, nil
}

// PutAccount persists an account.
func (s *AccountStore) PutAccount(addr common.Address, account *types.Account) error {
	return s.m.put(bucketAccounts, addr.Bytes(), account)
}

// LendingStore adapts the manager to one pool engine's state interface. The
// pool address scopes market and position keys so several pools can share a
// database.
type LendingStore struct {
	*AccountStore
	market common.Address
}

// LendingFor returns the state adapter for the pool at the given market
// address.
func (m *Manager) LendingFor(market common.Address) *LendingStore {
	return &LendingStore{AccountStore: m.Accounts(), market: market}
}

// GetMarket loads the pool financial state, nil when uninitialized.
func (s *LendingStore) GetMarket() (*lending.Market, error) {
	var market lending.Market
	found, err := s.m.get(bucketLendingMarkets, s.market.Bytes(), &market)
	if err != nil || !found {
		return nil, err
	}
	return &market, nil
}

// PutMarket persists the pool financial state.
func (s *LendingStore) PutMarket(market *lending.Market) error {
	return s.m.put(bucketLendingMarkets, s.market.Bytes(), market)
}

// GetPosition loads an account's pool position, nil when it has none.
func (s *LendingStore) GetPosition(addr common.Address) (*lending.Position, error) {
	var position lending.Position
	found, err := s.m.get(bucketPositions, scopedKey(s.market, addr), &position)
	if err != nil || !found {
		return nil, err
	}
	return &position, nil
}

// PutPosition persists an account's pool position.
func (s *LendingStore) PutPosition(position *lending.Position) error {
	return s.m.put(bucketPositions, scopedKey(s.market, position.Address), position)
}

// RegistryStore adapts the manager to the comptroller state interface.
type RegistryStore struct {
	m *Manager
}

// Registry returns the comptroller state adapter.
func (m *Manager) Registry() *RegistryStore { return &RegistryStore{m: m} }

// GetMarket loads a market listing record, nil when never listed.
func (s *RegistryStore) GetMarket(addr common.Address) (*comptroller.Market, error) {
	var market comptroller.Market
	found, err := s.m.get(bucketRegistryMarkets, addr.Bytes(), &market)
	if err != nil || !found {
		return nil, err
	}
	return &market, nil
}

// PutMarket persists a market listing record.
func (s *RegistryStore) PutMarket(market *comptroller.Market) error {
	return s.m.put(bucketRegistryMarkets, market.Address.Bytes(), market)
}

// ListMarkets returns every listed market address in key order.
func (s *RegistryStore) ListMarkets() ([]common.Address, error) {
	if s.m == nil || s.m.db == nil {
		return nil, fmt.Errorf("state: database not open")
	}
	var out []common.Address
	err := s.m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistryMarkets).ForEach(func(k, _ []byte) error {
			out = append(out, common.BytesToAddress(k))
			return nil
		})
	})
	return out, err
}

// GetEnteredMarkets returns the markets an account entered as collateral.
func (s *RegistryStore) GetEnteredMarkets(account common.Address) ([]common.Address, error) {
	var entered []common.Address
	_, err := s.m.get(bucketRegistryEntered, account.Bytes(), &entered)
	return entered, err
}

// PutEnteredMarkets persists an account's entered market set.
func (s *RegistryStore) PutEnteredMarkets(account common.Address, markets []common.Address) error {
	return s.m.put(bucketRegistryEntered, account.Bytes(), markets)
}

// AuctionStore adapts the manager to the auction engine state interface.
type AuctionStore struct {
	m *Manager
}

// Auctions returns the auction state adapter.
func (m *Manager) Auctions() *AuctionStore { return &AuctionStore{m: m} }

// GetAuction loads the auction record for one token, if any.
func (s *AuctionStore) GetAuction(collection common.Address, tokenID uint64) (*auction.Auction, bool, error) {
	var record auction.Auction
	found, err := s.m.get(bucketAuctions, tokenKey(collection, tokenID), &record)
	if err != nil || !found {
		return nil, false, err
	}
	return &record, true, nil
}

// PutAuction persists an auction record.
func (s *AuctionStore) PutAuction(record *auction.Auction) error {
	return s.m.put(bucketAuctions, tokenKey(record.Collection, record.TokenID), record)
}

// DeleteAuction removes a settled auction record.
func (s *AuctionStore) DeleteAuction(collection common.Address, tokenID uint64) error {
	return s.m.delete(bucketAuctions, tokenKey(collection, tokenID))
}

// NftStore adapts the manager to one NFT pool's state interface, scoped by
// the pool market address.
type NftStore struct {
	m      *Manager
	market common.Address
}

// NftPoolFor returns the claim store for the NFT pool at the given market
// address.
func (m *Manager) NftPoolFor(market common.Address) *NftStore {
	return &NftStore{m: m, market: market}
}

// GetClaim loads a claim record, if any.
func (s *NftStore) GetClaim(tokenID uint64) (*nftpool.Claim, bool, error) {
	var claim nftpool.Claim
	found, err := s.m.get(bucketNftClaims, tokenKey(s.market, tokenID), &claim)
	if err != nil || !found {
		return nil, false, err
	}
	return &claim, true, nil
}

// PutClaim persists a claim record.
func (s *NftStore) PutClaim(claim *nftpool.Claim) error {
	return s.m.put(bucketNftClaims, tokenKey(s.market, claim.TokenID), claim)
}

// DeleteClaim removes a claim record.
func (s *NftStore) DeleteClaim(tokenID uint64) error {
	return s.m.delete(bucketNftClaims, tokenKey(s.market, tokenID))
}

// CountClaims counts the unescrowed claims held by one owner in this pool.
func (s *NftStore) CountClaims(owner common.Address) (uint64, error) {
	if s.m == nil || s.m.db == nil {
		return 0, fmt.Errorf("state: database not open")
	}
	prefix := s.market.Bytes()
	var count uint64
	err := s.m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNftClaims).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var claim nftpool.Claim
			if err := json.Unmarshal(v, &claim); err != nil {
				return err
			}
			if claim.Owner == owner && !claim.Escrowed {
				count++
			}
		}
		return nil
	})
	return count, err
}

// TokenLedger is the underlying NFT ownership ledger backing every
// collection. It implements the pool TokenRegistry interface.
type TokenLedger struct {
	m *Manager
}

// Tokens returns the NFT ownership ledger.
func (m *Manager) Tokens() *TokenLedger { return &TokenLedger{m: m} }

// ErrUnknownToken is returned when a token has never been minted.
var ErrUnknownToken = fmt.Errorf("state: unknown token")

// OwnerOf returns the current owner of a token.
func (l *TokenLedger) OwnerOf(collection common.Address, tokenID uint64) (common.Address, error) {
	var owner common.Address
	found, err := l.m.get(bucketNftTokens, tokenKey(collection, tokenID), &owner)
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, ErrUnknownToken
	}
	return owner, nil
}

// Transfer moves a token between owners. The from address must match the
// recorded owner.
func (l *TokenLedger) Transfer(collection common.Address, tokenID uint64, from, to common.Address) error {
	owner, err := l.OwnerOf(collection, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("state: token %d not owned by %s", tokenID, from.Hex())
	}
	return l.m.put(bucketNftTokens, tokenKey(collection, tokenID), to)
}

// MintToken records the initial owner of a token. Used at genesis and by
// faucet tooling.
func (l *TokenLedger) MintToken(collection common.Address, tokenID uint64, owner common.Address) error {
	return l.m.put(bucketNftTokens, tokenKey(collection, tokenID), owner)
}
