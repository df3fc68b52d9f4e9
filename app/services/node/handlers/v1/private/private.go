// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/ledger/business/sys/metrics"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveStatus(), http.StatusOK)
}

// Chain returns the whole chain held by this node.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.ExportChain(), http.StatusOK)
}

// ProposeBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local ledger.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	// Ask the state package to validate the proposed block. If the block
	// passes validation, it will be added to the ledger.
	if err := h.State.ImportBlock(blockData); err != nil {
		metrics.AddBlocksRejected(ctx)

		if errors.Is(err, state.ErrHalted) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}

		fields := map[string]string{"reason": "unknown"}
		if reason := database.Reason(err); reason != nil {
			fields["reason"] = reason.Error()
		}

		return errs.NewTrustedFields(err, http.StatusNotAcceptable, fields)
	}

	metrics.AddBlocksAccepted(ctx)

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeChain takes a chain received from a peer and runs fork choice
// against the local chain.
func (h Handlers) ProposeChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var chain []database.BlockData
	if err := web.Decode(r, &chain); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if len(chain) == 0 {
		return errs.NewTrusted(errors.New("chain is empty"), http.StatusBadRequest)
	}

	replaced, err := h.State.ImportChain(chain)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrUnrecoverableFork):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, database.ErrForeignGenesis):
			fields := map[string]string{"reason": database.ErrForeignGenesis.Error()}
			return errs.NewTrustedFields(err, http.StatusNotAcceptable, fields)
		}
		return err
	}

	resp := struct {
		Status      string `json:"status"`
		ChainLength int    `json:"chain_length"`
	}{
		Status:      "kept local",
		ChainLength: h.State.RetrieveChainLength(),
	}
	if replaced {
		resp.Status = "replaced"
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitPeer is called by a node so they can be added to the known peer list.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var pr peer.Peer
	if err := web.Decode(r, &pr); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if pr.Host == "" {
		return errs.NewTrusted(errors.New("host is required"), http.StatusBadRequest)
	}

	if h.State.AddKnownPeer(pr) {
		h.Log.Infow("adding peer", "traceid", web.GetTraceID(ctx), "host", pr.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
