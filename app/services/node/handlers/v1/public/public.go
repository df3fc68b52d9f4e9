// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Chain returns the whole chain held by this node.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.ExportChain(), http.StatusOK)
}

// LatestBlock returns the latest block in the chain.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := database.NewBlockData(h.State.RetrieveLatestBlock())
	return web.Respond(ctx, w, latest, http.StatusOK)
}

// Mempool returns the set of payloads waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pool := h.State.RetrieveMempool()

	entries := make([]entry, len(pool))
	for i, e := range pool {
		entries[i] = entry{
			ID:       e.ID,
			Data:     string(e.Data),
			Received: e.Received,
		}
	}

	return web.Respond(ctx, w, entries, http.StatusOK)
}

// SubmitPayload queues a new payload to be sealed into a block.
func (h Handlers) SubmitPayload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var p payload
	if err := web.Decode(r, &p); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	id, err := h.State.SubmitPayload([]byte(p.Data))
	if err != nil {
		if errors.Is(err, state.ErrHalted) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	h.Log.Infow("submit payload", "traceid", web.GetTraceID(ctx), "id", id, "bytes", len(p.Data))

	resp := queued{
		ID:      id,
		Pending: h.State.RetrieveMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// Resync asks the known peers for their chains and adopts the best one. This
// is how a halted node is brought back.
func (h Handlers) Resync(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	replaced, err := h.State.Resync()
	if err != nil {
		if errors.Is(err, state.ErrHalted) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	resp := resync{
		Replaced:    replaced,
		ChainLength: h.State.RetrieveChainLength(),
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
