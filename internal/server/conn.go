package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/toolrelay/toolrelay/internal/rpc"
)

// conn handles one WebSocket. Frames are read and routed in arrival order;
// tool executions run on their own goroutines and reply whenever they finish.
type conn struct {
	id  string
	srv *Server
	ws  *websocket.Conn
	log *slog.Logger

	writeMu   sync.Mutex
	inflight  sync.WaitGroup
	closeOnce sync.Once
}

func newConn(srv *Server, ws *websocket.Conn) *conn {
	id := ulid.Make().String()
	return &conn{
		id:  id,
		srv: srv,
		ws:  ws,
		log: srv.log.With("conn", id, "remote", ws.RemoteAddr().String()),
	}
}

// serve runs the read loop until the peer goes away or the server stops.
func (c *conn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		c.inflight.Wait()
		c.close()
		c.log.Debug("server: connection closed")
	}()

	if c.srv.cfg.MaxMessageBytes > 0 {
		c.ws.SetReadLimit(c.srv.cfg.MaxMessageBytes)
	}
	c.log.Debug("server: connection opened")

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				c.log.Debug("server: peer closed", "err", err)
			} else {
				c.log.Warn("server: read failed", "err", err)
			}
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *conn) dispatch(ctx context.Context, data []byte) {
	req, err := rpc.Decode(data)
	if err != nil {
		c.log.Warn("server: malformed frame", "err", err)
		c.reply(rpc.NewError(nil, err))
		return
	}

	method := rpc.ParseMethod(req.Method)
	if c.srv.metrics != nil {
		c.srv.metrics.RequestReceived(method.String())
	}

	switch method {
	case rpc.MethodInitialize:
		c.reply(rpc.NewResult(req.ID, c.srv.initialize()))
	case rpc.MethodToolList:
		c.reply(rpc.NewResult(req.ID, listResult{Tools: c.srv.invoker.Registry().List()}))
	case rpc.MethodToolExecute:
		p, err := rpc.DecodeExecuteParams(req.Params)
		if err != nil {
			c.reply(rpc.NewError(req.ID, err))
			return
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			c.execute(ctx, req.ID, p)
		}()
	default:
		c.reply(rpc.NewError(req.ID, &rpc.UnknownMethodError{Method: req.Method}))
	}
}

func (c *conn) execute(ctx context.Context, id json.RawMessage, p rpc.ExecuteParams) {
	result, err := c.srv.invoker.Invoke(ctx, p.Tool, p.Params)
	if ctx.Err() != nil {
		c.log.Debug("server: dropping reply for closed connection", "tool", p.Tool)
		return
	}
	if err != nil {
		c.reply(rpc.NewError(id, err))
		return
	}
	c.reply(rpc.NewResult(id, result))
}

// reply writes resp. gorilla/websocket allows a single concurrent writer.
func (c *conn) reply(resp *rpc.Response) {
	data, err := rpc.Encode(resp)
	if err != nil {
		c.log.Error("server: encode response", "err", err)
		data, _ = rpc.Encode(rpc.NewError(resp.ID, nil))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn("server: write failed", "err", err)
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed)
}

func (c *conn) close() {
	c.closeOnce.Do(func() { _ = c.ws.Close() })
}
