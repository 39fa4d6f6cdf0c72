package cmd

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
	"github.com/wundergraph/graphql-ws-transport/pkg/subscription/websocket"
)

const defaultCounterTicks = 10

// demoExecutor resolves every subscription to a counter stream and every
// other operation to an echo of its variables.
type demoExecutor struct {
	tickInterval time.Duration
}

func newDemoExecutor(tickInterval time.Duration) *demoExecutor {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &demoExecutor{tickInterval: tickInterval}
}

func (d *demoExecutor) Execute(_ context.Context, request *subscription.Request) (*subscription.Response, error) {
	if !strings.HasPrefix(strings.TrimSpace(request.Query), "subscription") {
		data, err := echoVariables(request.Variables)
		if err != nil {
			return nil, err
		}
		return subscription.NewResultResponse(&subscription.ExecutionResult{Data: data}), nil
	}

	ticks := defaultCounterTicks
	if count := gjson.GetBytes(request.Variables, "count"); count.Exists() {
		if count.Type != gjson.Number || count.Int() < 0 {
			return nil, subscription.RequestError{
				Message: "variable count must be a positive number",
				Path:    []any{"count"},
			}
		}
		ticks = int(count.Int())
	}

	return subscription.NewStreamResponse(newCounterStream(ticks, d.tickInterval)), nil
}

func echoVariables(variables []byte) ([]byte, error) {
	data := []byte(`{"echo":null}`)
	if len(variables) == 0 {
		return data, nil
	}
	return sjson.SetRawBytes(data, "echo", variables)
}

// counterStream yields {"counter":n} for n in 1..ticks, one per interval.
type counterStream struct {
	ticks   int
	current int
	ticker  *time.Ticker
}

func newCounterStream(ticks int, interval time.Duration) *counterStream {
	return &counterStream{
		ticks:  ticks,
		ticker: time.NewTicker(interval),
	}
}

func (c *counterStream) Next(ctx context.Context) (*subscription.ExecutionResult, error) {
	if c.current >= c.ticks {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ticker.C:
	}

	c.current++
	data, err := sjson.SetBytes([]byte(`{}`), "counter", c.current)
	if err != nil {
		return nil, err
	}
	return &subscription.ExecutionResult{Data: data}, nil
}

func (c *counterStream) Close() error {
	c.ticker.Stop()
	return nil
}

// tokenInitFunc accepts connections whose init payload carries token. An
// empty token accepts every connection.
func tokenInitFunc(token string) websocket.InitFunc {
	return func(_ context.Context, payload websocket.InitPayload) error {
		if token == "" {
			return nil
		}
		if gjson.GetBytes(payload, "token").String() != token {
			return subscription.RequestError{Message: "invalid token"}
		}
		return nil
	}
}
