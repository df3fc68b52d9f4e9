package state

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(index uint64, block database.Block) {
	blockJSON, err := json.Marshal(database.NewBlockData(block))
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"index":%d,"block":%s}`, index, string(blockJSON))
}
