package types

// type of ledger command
type CommandType uint

const (
	CommandTypeList CommandType = iota + 1
	CommandTypeListMany
	CommandTypeRent
	CommandTypeRentMany
	CommandTypeReturn
	CommandTypeReturnMany
	CommandTypeClaim
	CommandTypeClaimMany
	CommandTypeDelist
	CommandTypeDelistMany

	// admin commands, they drive the in-process registry and payment ledger
	CommandTypeMintAsset
	CommandTypeSetApproval
	CommandTypeFaucet
	CommandTypeApprovePayment
)

var commandNames = map[CommandType]string{
	CommandTypeList:           "list",
	CommandTypeListMany:       "list_many",
	CommandTypeRent:           "rent",
	CommandTypeRentMany:       "rent_many",
	CommandTypeReturn:         "return",
	CommandTypeReturnMany:     "return_many",
	CommandTypeClaim:          "claim",
	CommandTypeClaimMany:      "claim_many",
	CommandTypeDelist:         "delist",
	CommandTypeDelistMany:     "delist_many",
	CommandTypeMintAsset:      "mint_asset",
	CommandTypeSetApproval:    "set_approval",
	CommandTypeFaucet:         "faucet",
	CommandTypeApprovePayment: "approve_payment",
}

func (t CommandType) String() string {
	if name, ok := commandNames[t]; ok {
		return name
	}
	return "unknown"
}

// interface all ledger commands implement
type Command interface {
	Type() CommandType
}

// terms of one listing
type ListTerms struct {
	Asset        AssetRef `json:"asset"`
	MaxDuration  uint32   `json:"max_duration"`
	DailyPrice   Amount   `json:"daily_price"`
	Collateral   Amount   `json:"collateral"`
	PaymentAsset AssetID  `json:"payment_asset"`
}

// lists one asset
type ListCmd struct {
	Lender Identity  `json:"lender"`
	Terms  ListTerms `json:"terms"`
}

func (c ListCmd) Type() CommandType { return CommandTypeList }

// lists many assets, all or nothing
type ListManyCmd struct {
	Lender Identity    `json:"lender"`
	Terms  []ListTerms `json:"terms"`
}

func (c ListManyCmd) Type() CommandType { return CommandTypeListMany }

// one rental request inside a batch
type RentTerms struct {
	ListingID uint64 `json:"listing_id"`
	Duration  uint32 `json:"duration"`
}

// borrows a listed asset
type RentCmd struct {
	Borrower  Identity `json:"borrower"`
	ListingID uint64   `json:"listing_id"`
	Duration  uint32   `json:"duration"`
}

func (c RentCmd) Type() CommandType { return CommandTypeRent }

// borrows many listed assets, all or nothing
type RentManyCmd struct {
	Borrower Identity    `json:"borrower"`
	Rentals  []RentTerms `json:"rentals"`
}

func (c RentManyCmd) Type() CommandType { return CommandTypeRentMany }

// returns a borrowed asset before its rental window closes
type ReturnCmd struct {
	Caller   Identity `json:"caller"`
	RentalID uint64   `json:"rental_id"`
}

func (c ReturnCmd) Type() CommandType { return CommandTypeReturn }

type ReturnManyCmd struct {
	Caller    Identity `json:"caller"`
	RentalIDs []uint64 `json:"rental_ids"`
}

func (c ReturnManyCmd) Type() CommandType { return CommandTypeReturnMany }

// lender takes the collateral of a defaulted rental
type ClaimCmd struct {
	Caller   Identity `json:"caller"`
	RentalID uint64   `json:"rental_id"`
}

func (c ClaimCmd) Type() CommandType { return CommandTypeClaim }

type ClaimManyCmd struct {
	Caller    Identity `json:"caller"`
	RentalIDs []uint64 `json:"rental_ids"`
}

func (c ClaimManyCmd) Type() CommandType { return CommandTypeClaimMany }

// lender withdraws an unborrowed listing and gets the asset back
type DelistCmd struct {
	Caller    Identity `json:"caller"`
	ListingID uint64   `json:"listing_id"`
}

func (c DelistCmd) Type() CommandType { return CommandTypeDelist }

type DelistManyCmd struct {
	Caller     Identity `json:"caller"`
	ListingIDs []uint64 `json:"listing_ids"`
}

func (c DelistManyCmd) Type() CommandType { return CommandTypeDelistMany }

// creates a unique asset owned by Owner
type MintAssetCmd struct {
	Owner Identity `json:"owner"`
	Asset AssetRef `json:"asset"`
}

func (c MintAssetCmd) Type() CommandType { return CommandTypeMintAsset }

// lets Operator move every asset of Owner
type SetApprovalCmd struct {
	Owner    Identity `json:"owner"`
	Operator Identity `json:"operator"`
	Approved bool     `json:"approved"`
}

func (c SetApprovalCmd) Type() CommandType { return CommandTypeSetApproval }

// credits payment asset to an account
type FaucetCmd struct {
	To     Identity `json:"to"`
	Asset  AssetID  `json:"asset"`
	Amount Amount   `json:"amount"`
}

func (c FaucetCmd) Type() CommandType { return CommandTypeFaucet }

// lets Spender pull up to Amount of Owner's payment asset
type ApprovePaymentCmd struct {
	Owner   Identity `json:"owner"`
	Spender Identity `json:"spender"`
	Asset   AssetID  `json:"asset"`
	Amount  Amount   `json:"amount"`
}

func (c ApprovePaymentCmd) Type() CommandType { return CommandTypeApprovePayment }
