package escrowv1

import (
	"time"

	"github.com/pixperk/escrowd/pkg/types"
)

// ListTerms are the terms of one listing.
type ListTerms struct {
	Registry     string `json:"registry" validate:"required"`
	Instance     string `json:"instance" validate:"required"`
	MaxDuration  uint32 `json:"max_duration" validate:"lte=36500"`
	DailyPrice   uint64 `json:"daily_price"`
	Collateral   uint64 `json:"collateral"`
	PaymentAsset string `json:"payment_asset" validate:"required"`
}

type ListRequest struct {
	Lender string    `json:"lender" validate:"required,notledger"`
	Terms  ListTerms `json:"terms"`
}

type ListManyRequest struct {
	Lender string      `json:"lender" validate:"required,notledger"`
	Terms  []ListTerms `json:"terms" validate:"required,min=1,dive"`
}

type ListResponse struct {
	ListingIDs []uint64 `json:"listing_ids"`
}

type RentItem struct {
	ListingID uint64 `json:"listing_id" validate:"required"`
	Duration  uint32 `json:"duration" validate:"lte=36500"`
}

type RentRequest struct {
	Borrower  string `json:"borrower" validate:"required,notledger"`
	ListingID uint64 `json:"listing_id" validate:"required"`
	Duration  uint32 `json:"duration" validate:"lte=36500"`
}

type RentManyRequest struct {
	Borrower string     `json:"borrower" validate:"required,notledger"`
	Rentals  []RentItem `json:"rentals" validate:"required,min=1,dive"`
}

type RentResponse struct {
	RentalIDs []uint64 `json:"rental_ids"`
}

type ReturnRequest struct {
	Caller   string `json:"caller" validate:"required,notledger"`
	RentalID uint64 `json:"rental_id" validate:"required"`
}

type ReturnManyRequest struct {
	Caller    string   `json:"caller" validate:"required,notledger"`
	RentalIDs []uint64 `json:"rental_ids" validate:"required,min=1,dive,required"`
}

type ReturnResponse struct {
	RentalIDs []uint64 `json:"rental_ids"`
}

type ClaimRequest struct {
	Caller   string `json:"caller" validate:"required,notledger"`
	RentalID uint64 `json:"rental_id" validate:"required"`
}

type ClaimManyRequest struct {
	Caller    string   `json:"caller" validate:"required,notledger"`
	RentalIDs []uint64 `json:"rental_ids" validate:"required,min=1,dive,required"`
}

type ClaimResponse struct {
	RentalIDs []uint64 `json:"rental_ids"`
}

type DelistRequest struct {
	Caller    string `json:"caller" validate:"required,notledger"`
	ListingID uint64 `json:"listing_id" validate:"required"`
}

type DelistManyRequest struct {
	Caller     string   `json:"caller" validate:"required,notledger"`
	ListingIDs []uint64 `json:"listing_ids" validate:"required,min=1,dive,required"`
}

type DelistResponse struct {
	ListingIDs []uint64 `json:"listing_ids"`
}

type GetListingRequest struct {
	ListingID uint64 `json:"listing_id" validate:"required"`
}

type GetListingResponse struct {
	Listing types.Listing `json:"listing"`
}

type GetRentalRequest struct {
	RentalID uint64 `json:"rental_id" validate:"required"`
}

type GetRentalResponse struct {
	Rental types.Rental `json:"rental"`
	DueAt  time.Time    `json:"due_at"`
}

type CountsRequest struct{}

type CountsResponse struct {
	ListingCount   uint64            `json:"listing_count"`
	RentalCount    uint64            `json:"rental_count"`
	ActiveListings int               `json:"active_listings"`
	ActiveRentals  int               `json:"active_rentals"`
	Escrowed       map[string]uint64 `json:"escrowed,omitempty"`
}

type BalanceRequest struct {
	Holder string `json:"holder" validate:"required"`
	Asset  string `json:"asset" validate:"required"`
}

type BalanceResponse struct {
	Balance uint64 `json:"balance"`
	// allowance granted to the ledger
	Allowance uint64 `json:"allowance"`
}

type MintAssetRequest struct {
	Owner    string `json:"owner" validate:"required"`
	Registry string `json:"registry" validate:"required"`
	Instance string `json:"instance" validate:"required"`
}

type MintAssetResponse struct {
	Owner    string `json:"owner"`
	Registry string `json:"registry"`
	Instance string `json:"instance"`
}

type SetApprovalRequest struct {
	Owner string `json:"owner" validate:"required"`
	// defaults to the ledger
	Operator string `json:"operator,omitempty"`
	Approved bool   `json:"approved"`
}

type SetApprovalResponse struct {
	Approved bool `json:"approved"`
}

type FaucetRequest struct {
	To     string `json:"to" validate:"required"`
	Asset  string `json:"asset" validate:"required"`
	Amount uint64 `json:"amount" validate:"required"`
}

type FaucetResponse struct {
	Balance uint64 `json:"balance"`
}

type ApprovePaymentRequest struct {
	Owner string `json:"owner" validate:"required"`
	// defaults to the ledger
	Spender string `json:"spender,omitempty"`
	Asset   string `json:"asset" validate:"required"`
	Amount  uint64 `json:"amount"`
}

type ApprovePaymentResponse struct {
	Allowance uint64 `json:"allowance"`
}

type JoinRequest struct {
	NodeID string `json:"node_id" validate:"required"`
	Addr   string `json:"addr" validate:"required,hostname_port"`
}

type JoinResponse struct{}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	NodeID       string            `json:"node_id"`
	IsLeader     bool              `json:"is_leader"`
	LeaderAddr   string            `json:"leader_addr"`
	LeaderID     string            `json:"leader_id"`
	AppliedIndex uint64            `json:"applied_index"`
	EventSeq     uint64            `json:"event_seq"`
	Raft         map[string]string `json:"raft,omitempty"`
}

// FromSeq > 0 replays archived events starting at that sequence before
// streaming live ones. Kinds filters by event kind, empty means all.
type WatchRequest struct {
	FromSeq uint64   `json:"from_seq"`
	Kinds   []string `json:"kinds,omitempty"`
}
