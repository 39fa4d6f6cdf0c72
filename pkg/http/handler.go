// Package http handles GraphQL HTTP Requests including WebSocket Upgrades.
package http

import (
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	log "github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
	"github.com/wundergraph/graphql-ws-transport/pkg/subscription/websocket"
)

// NewUpgrader returns an upgrader negotiating the supported GraphQL
// websocket sub-protocols.
func NewUpgrader() *ws.HTTPUpgrader {
	return &ws.HTTPUpgrader{
		Protocol: websocket.IsSupportedProtocol,
	}
}

// NewGraphqlHTTPHandler serves single results over plain HTTP and every
// operation over websocket upgrades. A nil upgrader uses NewUpgrader.
func NewGraphqlHTTPHandler(executor subscription.Executor, logger log.Logger, upgrader *ws.HTTPUpgrader, options ...websocket.HandleOptionFunc) http.Handler {
	if logger == nil {
		logger = log.NoopLogger
	}
	if upgrader == nil {
		upgrader = NewUpgrader()
	}
	return &GraphQLHTTPRequestHandler{
		log:          logger,
		executor:     executor,
		wsUpgrader:   upgrader,
		wsOptions:    options,
		transportCfg: websocket.NetConnTransportOptions{Logger: logger},
	}
}

type GraphQLHTTPRequestHandler struct {
	log          log.Logger
	executor     subscription.Executor
	wsUpgrader   *ws.HTTPUpgrader
	wsOptions    []websocket.HandleOptionFunc
	transportCfg websocket.NetConnTransportOptions
}

// SetMaxMessageSize limits the size of a single websocket frame read from a
// client. Zero means no limit.
func (g *GraphQLHTTPRequestHandler) SetMaxMessageSize(size int64) {
	g.transportCfg.MaxMessageSize = size
}

func (g *GraphQLHTTPRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.isWebsocketUpgrade(r) {
		g.handleWebsocket(w, r)
		return
	}
	g.handleHTTP(w, r)
}

func (g *GraphQLHTTPRequestHandler) isWebsocketUpgrade(r *http.Request) bool {
	for _, header := range r.Header["Upgrade"] {
		if strings.EqualFold(header, "websocket") {
			return true
		}
	}
	return false
}
