// Package chains lists the networks the client can run against.
package chains

import "fmt"

const (
	Flare    = 14
	Songbird = 19
	Coston2  = 114
)

// Name returns a display name for a chain id.
func Name(chainID uint64) string {
	switch chainID {
	case Flare:
		return "Flare"
	case Songbird:
		return "Songbird"
	case Coston2:
		return "Coston2"
	default:
		return fmt.Sprintf("chain %d", chainID)
	}
}

// Supported reports whether the liquidity-book deployment is known on
// chainID.
func Supported(chainID uint64) bool {
	return chainID == Flare || chainID == Coston2
}
