package public

import "time"

type payload struct {
	Data string `json:"data" validate:"required"`
}

type entry struct {
	ID       string    `json:"id"`
	Data     string    `json:"data"`
	Received time.Time `json:"received"`
}

type queued struct {
	ID      string `json:"id"`
	Pending int    `json:"pending"`
}

type resync struct {
	Replaced    bool   `json:"replaced"`
	ChainLength int    `json:"chain_length"`
	LatestBlock string `json:"latest_block"`
}
