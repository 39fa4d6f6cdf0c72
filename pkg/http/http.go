package http

import (
	"encoding/json"
	"io"
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

const (
	httpHeaderContentType string = "Content-Type"

	httpContentTypeApplicationJson string = "application/json"
)

var errSubscriptionOverHTTP = subscription.RequestError{Message: "subscriptions are only served over websocket"}

func (g *GraphQLHTTPRequestHandler) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.handleHTTP",
			log.Error(err),
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	request, err := subscription.UnmarshalRequest(data)
	if err != nil {
		g.writeErrors(w, http.StatusBadRequest, subscription.RequestErrorsFromError(err))
		return
	}

	response, err := g.executor.Execute(r.Context(), request)
	if err != nil {
		g.log.Error("executor.Execute",
			log.Error(err),
		)
		g.writeErrors(w, http.StatusInternalServerError, subscription.RequestErrorsFromError(err))
		return
	}

	switch {
	case response == nil || (response.Stream == nil && response.Result == nil):
		g.writeErrors(w, http.StatusInternalServerError, subscription.RequestErrorsFromError(subscription.ErrEmptyResponse))
		return
	case response.Stream != nil:
		_ = response.Stream.Close()
		g.writeErrors(w, http.StatusBadRequest, subscription.RequestErrors{errSubscriptionOverHTTP})
		return
	}

	result := response.Result
	defer result.Release()

	body, err := json.Marshal(result)
	if err != nil {
		g.log.Error("GraphQLHTTPRequestHandler.handleHTTP.json.Marshal",
			log.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add(httpHeaderContentType, httpContentTypeApplicationJson)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (g *GraphQLHTTPRequestHandler) writeErrors(w http.ResponseWriter, status int, errs subscription.RequestErrors) {
	body, err := json.Marshal(subscription.ExecutionResult{Errors: errs})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Add(httpHeaderContentType, httpContentTypeApplicationJson)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
