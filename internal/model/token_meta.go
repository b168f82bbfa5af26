package model

// TokenMeta is the ERC20 metadata listed for an adapter's supported tokens.
// Native marks the gas token placeholder, which has no contract.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Native   bool   `json:"native,omitempty"`
}
