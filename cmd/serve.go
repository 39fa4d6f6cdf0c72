package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	graphqlhttp "github.com/wundergraph/graphql-ws-transport/pkg/http"
	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
	"github.com/wundergraph/graphql-ws-transport/pkg/subscription/websocket"
)

const shutdownTimeout = 10 * time.Second

// serveConfig is read from flags, the config file and GRAPHQL_WS_* variables.
type serveConfig struct {
	ListenAddr        string
	Endpoint          string
	KeepAliveInterval time.Duration
	TickInterval      time.Duration
	MaxMessageSize    int64
	InitToken         string
	RedactFields      []string
	LogLevel          string
}

func loadServeConfig() serveConfig {
	return serveConfig{
		ListenAddr:        viper.GetString("listenAddr"),
		Endpoint:          viper.GetString("endpoint"),
		KeepAliveInterval: viper.GetDuration("keepAliveInterval"),
		TickInterval:      viper.GetDuration("tickInterval"),
		MaxMessageSize:    viper.GetInt64("maxMessageSize"),
		InitToken:         viper.GetString("initToken"),
		RedactFields:      viper.GetStringSlice("redactFields"),
		LogLevel:          viper.GetString("logLevel"),
	}
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts a GraphQL websocket server backed by a demo executor",
	Long: `serve starts a GraphQL server accepting graphql-ws and graphql-transport-ws
connections. Subscriptions stream a counter, every other operation echoes its variables.`,
	Example: "serve --listenAddr 0.0.0.0:4000 --keepAliveInterval 10s --initToken secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := loadServeConfig()

		logger, flush, err := newLogger(config.LogLevel)
		if err != nil {
			return err
		}
		defer flush()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, config, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listenAddr", "0.0.0.0:4000", "host:port the server should listen on")
	serveCmd.Flags().String("endpoint", "/graphql", "path of the GraphQL endpoint")
	serveCmd.Flags().Duration("keepAliveInterval", websocket.DefaultKeepAliveInterval, "interval between keep alive messages")
	serveCmd.Flags().Duration("tickInterval", time.Second, "interval between two counter results of a subscription")
	serveCmd.Flags().Int64("maxMessageSize", 0, "maximum size of a client message in bytes, 0 disables the limit")
	serveCmd.Flags().String("initToken", "", "token connection_init payloads must carry")
	serveCmd.Flags().StringSlice("redactFields", nil, "result paths removed before results are sent")

	for _, name := range []string{"listenAddr", "endpoint", "keepAliveInterval", "tickInterval", "maxMessageSize", "initToken", "redactFields"} {
		_ = viper.BindPFlag(name, serveCmd.Flags().Lookup(name))
	}
}

func newServeHandler(config serveConfig, logger log.Logger) http.Handler {
	options := []websocket.HandleOptionFunc{
		websocket.WithKeepAliveInterval(config.KeepAliveInterval),
		websocket.WithInitFunc(tokenInitFunc(config.InitToken)),
		websocket.WithHooks(subscription.Hooks{
			OnBeforeStart: func(_ context.Context, id string, request *subscription.Request) error {
				logger.Debug("serve.OnBeforeStart",
					log.String("id", id),
					log.String("operationName", request.OperationName),
				)
				return nil
			},
			OnComplete: func(_ context.Context, id string) error {
				logger.Debug("serve.OnComplete",
					log.String("id", id),
				)
				return nil
			},
		}),
	}
	if len(config.RedactFields) > 0 {
		options = append(options, websocket.WithResultInterceptor(subscription.RedactFields(config.RedactFields...)))
	}

	handler := graphqlhttp.NewGraphqlHTTPHandler(newDemoExecutor(config.TickInterval), logger, nil, options...)
	handler.(*graphqlhttp.GraphQLHTTPRequestHandler).SetMaxMessageSize(config.MaxMessageSize)

	mux := http.NewServeMux()
	mux.Handle(config.Endpoint, handler)
	return mux
}

// serve blocks until ctx is done and the server shut down.
func serve(ctx context.Context, config serveConfig, logger log.Logger) error {
	server := &http.Server{
		Addr:    config.ListenAddr,
		Handler: newServeHandler(config, logger),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening",
			log.String("addr", config.ListenAddr),
			log.String("endpoint", config.Endpoint),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed listening: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down",
		log.String("addr", prettyAddr(config.ListenAddr)),
	)
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func prettyAddr(addr string) string {
	return strings.Replace(addr, "0.0.0.0", "localhost", -1)
}
