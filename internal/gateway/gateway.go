// Package gateway exposes committed pool state over REST and streams committed
// events over a websocket. It is read-only; txs go through CometBFT RPC.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sweepchain/internal/app"
	"sweepchain/internal/pool"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Querier is the read path of the ABCI application.
type Querier interface {
	Query(ctx context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error)
}

// Subscriber delivers committed events.
type Subscriber interface {
	Subscribe(buffer int) (<-chan app.Event, func())
}

type Handler struct {
	querier  Querier
	events   Subscriber
	logger   log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(q Querier, events Subscriber, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handler{
		querier: q,
		events:  events,
		logger:  logger.With("module", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Read-only public data.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1")
	v1.GET("/round", h.queryPath("/pool/round"))
	v1.GET("/balance", h.queryPath("/pool/balance"))
	v1.GET("/participants", h.queryPath("/pool/participants"))
	v1.GET("/tickets", h.queryPath("/pool/tickets"))
	v1.GET("/params", h.queryPath("/pool/params"))
	v1.GET("/implementation", h.queryPath("/pool/implementation"))
	v1.GET("/history", h.queryPath("/pool/history"))
	v1.GET("/history/:roundId", h.GetHistory)
	v1.GET("/winning-numbers", h.queryPath("/pool/winning-numbers"))
	v1.GET("/roles/:addr", h.GetRoles)
	v1.GET("/accounts/:addr", h.GetAccount)
	v1.GET("/events", h.StreamEvents)
}

// NewRouter builds the gin engine serving the gateway.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) queryPath(path string) gin.HandlerFunc {
	return func(c *gin.Context) { h.respond(c, path) }
}

func (h *Handler) GetHistory(c *gin.Context) {
	h.respond(c, "/pool/history/"+c.Param("roundId"))
}

func (h *Handler) GetRoles(c *gin.Context) {
	h.respond(c, "/pool/roles/"+c.Param("addr"))
}

func (h *Handler) GetAccount(c *gin.Context) {
	h.respond(c, "/account/"+c.Param("addr"))
}

func (h *Handler) respond(c *gin.Context, path string) {
	res, err := h.querier.Query(c.Request.Context(), &abci.QueryRequest{Path: path})
	if err != nil {
		h.logger.Error("query failed", "path", path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res.Code != 0 {
		c.JSON(statusFor(res), gin.H{
			"codespace": res.Codespace,
			"code":      res.Code,
			"error":     res.Log,
		})
		return
	}
	c.Header("X-Block-Height", strconv.FormatInt(res.Height, 10))
	c.Data(http.StatusOK, "application/json", res.Value)
}

func statusFor(res *abci.QueryResponse) int {
	if res.Codespace != pool.ModuleName {
		return http.StatusInternalServerError
	}
	switch res.Code {
	case pool.ErrNotInitialized.ABCICode():
		return http.StatusServiceUnavailable
	case pool.ErrInvalidRequest.ABCICode():
		if strings.Contains(res.Log, "no reward record") {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StreamEvents upgrades to a websocket and pushes committed events as JSON.
// ?types=Joined,RewardDistributed limits the stream to those event types.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}
	filter := map[string]bool{}
	for _, typ := range strings.Split(c.Query("types"), ",") {
		if typ = strings.TrimSpace(typ); typ != "" {
			filter[typ] = true
		}
	}

	// Subscribe before the handshake completes so the client sees every event
	// committed after it connected.
	events, cancel := h.events.Subscribe(0)
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// The read loop only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if len(filter) > 0 && !filter[ev.Type] {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Server runs the gateway until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger log.Logger
}

func NewServer(addr string, h *Handler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("module", "gateway"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
