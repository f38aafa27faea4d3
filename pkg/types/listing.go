package types

// a listing is an offer to lend one asset under fixed terms
// the ledger holds custody of the asset for as long as the listing exists
// a delisted listing is zeroed but keeps its slot, so its ID is never reissued
type Listing struct {
	ID           uint64   `json:"id"`
	Lender       Identity `json:"lender"`
	Asset        AssetRef `json:"asset"`
	DailyPrice   Amount   `json:"daily_price"`
	MaxDuration  uint32   `json:"max_duration"` //days
	Collateral   Amount   `json:"collateral"`
	PaymentAsset AssetID  `json:"payment_asset"`
	IsBorrowed   bool     `json:"is_borrowed"`
}

// zeroed listings are tombstones
func (l *Listing) IsZero() bool {
	return l.Lender == "" && l.Asset.IsZero()
}
