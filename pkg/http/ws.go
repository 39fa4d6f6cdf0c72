package http

import (
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription/websocket"
)

// handleWebsocket serves the upgraded connection on the request goroutine so
// the connection lives as long as the request context.
func (g *GraphQLHTTPRequestHandler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, _, handshake, err := g.wsUpgrader.Upgrade(r, w)
	if err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.handleWebsocket",
			log.Error(err),
		)
		return
	}

	g.log.Debug("GraphQLHTTPRequestHandler.handleWebsocket",
		log.String("protocol", handshake.Protocol),
		log.String("remote", r.RemoteAddr),
	)

	transport := websocket.NewNetConnTransport(conn, handshake.Protocol, g.transportCfg)
	options := append([]websocket.HandleOptionFunc{websocket.WithLogger(g.log)}, g.wsOptions...)

	err = websocket.Handle(r.Context(), transport, g.executor, options...)
	if err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.handleWebsocket.websocket.Handle",
			log.Error(err),
			log.String("remote", r.RemoteAddr),
		)
	}
}
