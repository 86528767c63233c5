// Command mcpgateway runs the MCP Streamable HTTP gateway: session/transport
// lifecycle, SSE resumability, and an OAuth 2.1 proxy in front of an
// upstream OIDC provider.
package main

import "github.com/mcpgateway/mcpgateway/cmd/mcpgateway/cmd"

func main() {
	cmd.Execute()
}
