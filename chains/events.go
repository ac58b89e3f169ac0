package chains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chainwatch/chainwatch/chains/common"
	chainerrors "github.com/chainwatch/chainwatch/errors"
	"github.com/chainwatch/chainwatch/store"
)

const (
	newBlockQuery     = "tm.event='NewBlock'"
	newBlockEventType = "tendermint/event/NewBlock"
	handshakeTimeout  = 15 * time.Second
	writeTimeout      = 10 * time.Second
)

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type newBlockMessage struct {
	Error  *rpcError `json:"error"`
	Result struct {
		Data struct {
			Type  string `json:"type"`
			Value struct {
				Block struct {
					Header blockHeader `json:"header"`
				} `json:"block"`
			} `json:"value"`
		} `json:"data"`
	} `json:"result"`
}

type blockHeader struct {
	Height          string    `json:"height"`
	Time            time.Time `json:"time"`
	ProposerAddress string    `json:"proposer_address"`
}

// SubscribeToEvents follows new blocks over the chain's websocket endpoint
// until ctx is cancelled, recording height, time and proposer of each block.
// Dropped or stale sessions are re-established with exponential backoff.
func (c *Chain) SubscribeToEvents(ctx context.Context) error {
	attempt := 0
	for {
		if attempt == 0 {
			c.conn.SetState(common.StateConnecting)
		}

		received, err := c.runSession(ctx)
		c.metrics.SetSubscriptionConnected(c.cfg.Name, false)
		if ctx.Err() != nil {
			c.conn.SetState(common.StateDisconnected)
			c.logger.Info().Msg("event subscription stopped")
			return ctx.Err()
		}

		if received {
			attempt = 0
		}
		delay := c.reconnect.CalculateBackoff(attempt)
		attempt++

		c.conn.SetState(common.StateReconnecting)
		c.metrics.IncSubscriptionReconnects(c.cfg.Name)
		msg := "event subscription ended, reconnecting"
		if chainerrors.IsChainError(err, chainerrors.ErrCodeTimeout) {
			msg = "event subscription went stale, reconnecting"
		}
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg(msg)

		select {
		case <-ctx.Done():
			c.conn.SetState(common.StateDisconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runSession runs one websocket session. It reports whether at least one
// block arrived, so that a healthy session resets the backoff.
func (c *Chain) runSession(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSSURL, nil)
	if err != nil {
		return false, chainerrors.NewSubscriptionError(c.cfg.Name, "dial "+c.cfg.WSSURL, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "subscribe",
		Params:  map[string]any{"query": newBlockQuery},
	})
	if err != nil {
		return false, chainerrors.NewSubscriptionError(c.cfg.Name, "subscribe", err)
	}
	c.logger.Info().Str("url", c.cfg.WSSURL).Msg("subscribed to new blocks")

	received := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.EventStaleTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
				return received, chainerrors.NewTimeoutError(c.cfg.Name,
					fmt.Sprintf("no event within %s", c.opts.EventStaleTimeout))
			}
			return received, chainerrors.NewSubscriptionError(c.cfg.Name, "read", err)
		}

		var msg newBlockMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("ignoring undecodable message")
			continue
		}
		if msg.Error != nil {
			return received, chainerrors.NewSubscriptionError(c.cfg.Name,
				fmt.Sprintf("rpc error %d: %s %s", msg.Error.Code, msg.Error.Message, msg.Error.Data), nil)
		}
		if msg.Result.Data.Type != newBlockEventType {
			continue
		}

		if err := c.handleBlock(msg.Result.Data.Value.Block.Header); err != nil {
			c.logger.Warn().Err(err).Msg("failed to record block")
			continue
		}
		if !received {
			c.metrics.SetSubscriptionConnected(c.cfg.Name, true)
		}
		received = true
	}
}

func (c *Chain) handleBlock(header blockHeader) error {
	height, err := strconv.ParseInt(header.Height, 10, 64)
	if err != nil {
		return chainerrors.NewValidationError(c.cfg.Name, "block height "+header.Height, err)
	}

	c.mu.Lock()
	if height > c.data.LatestHeight {
		c.data.LatestHeight = height
		c.data.LatestBlockTime = header.Time
		c.data.LastProposer = header.ProposerAddress
	}
	c.mu.Unlock()

	c.conn.MarkEvent(time.Now())
	c.metrics.SetBlockHeight(c.cfg.Name, height)

	if c.db == nil {
		return nil
	}
	err = c.db.SaveChainState(store.ChainState{
		LatestHeight:    height,
		LatestBlockTime: header.Time,
		LastProposer:    header.ProposerAddress,
	})
	if err != nil {
		return chainerrors.NewDatabaseError(c.cfg.Name, "save chain state", err)
	}

	if header.ProposerAddress != "" {
		matched, err := c.db.IncrementProposedBlocks(header.ProposerAddress)
		if err != nil {
			return chainerrors.NewDatabaseError(c.cfg.Name, "count proposed block", err)
		}
		if !matched {
			c.logger.Debug().Str("proposer", header.ProposerAddress).Int64("height", height).Msg("proposer not in validator database")
		}
	}
	return nil
}
