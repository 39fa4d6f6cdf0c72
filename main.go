// Command graphql-ws serves GraphQL operations over websockets.
//
// Both sub-protocols in use by GraphQL clients are supported: the legacy
// graphql-ws protocol of subscriptions-transport-ws and the
// graphql-transport-ws protocol of the graphql-ws library.
package main

import "github.com/wundergraph/graphql-ws-transport/cmd"

func main() {
	cmd.Execute()
}
