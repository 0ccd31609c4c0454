// Package mcp exposes payment requests to agents over the Model Context Protocol.
//
// Three tools are registered:
//
//   - decode_payment_request turns an x402:// URI into its JSON fields
//   - encode_payment_request builds an x402:// URI from fields
//   - pay_payment_request runs a payment for a URI and returns the result
//
// Serve over stdio:
//
//	srv := mcp.NewServer(orchestrator, session)
//	if err := srv.Run(ctx); err != nil { ... }
//
// Or attach the underlying SDK server to any transport:
//
//	session, err := srv.MCPServer().Connect(ctx, transport, nil)
package mcp
