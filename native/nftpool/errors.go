package nftpool

import "errors"

var (
	ErrNilState            = errors.New("nft pool: state not configured")
	ErrNilRegistry         = errors.New("nft pool: token registry not configured")
	ErrNilComptroller      = errors.New("nft pool: comptroller not configured")
	ErrNotTokenOwner       = errors.New("nft pool: caller does not own the token")
	ErrNoClaim             = errors.New("nft pool: no claim for token")
	ErrNotClaimOwner       = errors.New("nft pool: caller does not hold the claim")
	ErrTokenEscrowed       = errors.New("nft pool: token locked in auction")
	ErrTokenNotEscrowed    = errors.New("nft pool: token not locked in auction")
	ErrWouldCauseShortfall = errors.New("nft pool: redemption would cause shortfall")
)
