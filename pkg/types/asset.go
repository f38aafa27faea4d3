package types

import "fmt"

// identity of a party (lender, borrower or the ledger itself)
type Identity string

// identifies an asset registry (the collection a unique asset belongs to)
type RegistryID string

// identifies one asset inside a registry
type InstanceID string

// identifies a fungible payment asset
type AssetID string

// smallest unit of a payment asset
type Amount uint64

// points at exactly one unique asset
type AssetRef struct {
	Registry RegistryID `json:"registry"`
	Instance InstanceID `json:"instance"`
}

func (a AssetRef) IsZero() bool {
	return a.Registry == "" && a.Instance == ""
}

func (a AssetRef) String() string {
	return fmt.Sprintf("%s::%s", a.Registry, a.Instance)
}
