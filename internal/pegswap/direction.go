package pegswap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is an ordered swap path: source tokens in, target tokens out.
// (A,B) and (B,A) are distinct directions with independent liquidity.
type Direction struct {
	Source common.Address `json:"source"`
	Target common.Address `json:"target"`
}

func NewDirection(source, target common.Address) Direction {
	return Direction{Source: source, Target: target}
}

// Reverse returns the path in the opposite direction.
func (d Direction) Reverse() Direction {
	return Direction{Source: d.Target, Target: d.Source}
}

func (d Direction) String() string {
	return fmt.Sprintf("%s->%s", d.Source.Hex(), d.Target.Hex())
}
