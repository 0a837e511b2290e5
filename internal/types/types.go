// Package types defines the core domain models for the Likoin network (lkn).
// It contains the identity and asset vocabulary shared by the ledger, the
// voting engine and the resource registry, together with the signed
// transaction envelope delivered through consensus.
package types

// Version is the current version of lkn
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Address identifies a caller or a module account. User addresses are the
// hex-encoded ed25519 public key of the signer. Module addresses are fixed
// names that no key can ever produce, so only the module itself can act as
// them.
type Address string

// Module accounts. Each component acts under its own address when it calls
// into another component.
const (
	LedgerModule    Address = "module:ledger"
	RegistryModule  Address = "module:registry"
	CrowdsaleModule Address = "module:crowdsale"
)

// AssetKind selects one of the two fungible assets tracked by the ledger.
type AssetKind string

const (
	// Utility is the freely transferable unit used as vote weight.
	Utility AssetKind = "utility"
	// Settlement is the purchase currency, minted only by conversion or by a minter.
	Settlement AssetKind = "settlement"
)

// AssetKinds lists the supported kinds in a stable order.
var AssetKinds = []AssetKind{Utility, Settlement}

// Valid reports whether k names a known asset.
func (k AssetKind) Valid() bool {
	return k == Utility || k == Settlement
}

// AssetInfo is the descriptive metadata of an asset.
type AssetInfo struct {
	Kind   AssetKind `json:"kind"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol"`
}

// Supply is the externally verifiable bookkeeping of one asset:
// Outstanding always equals Minted - Burned and the sum of all balances.
type Supply struct {
	Kind        AssetKind `json:"kind"`
	Minted      uint64    `json:"minted"`
	Burned      uint64    `json:"burned"`
	Outstanding uint64    `json:"outstanding"`
	Holders     int       `json:"holders"`
}
