// Command sandboxctl is a shell client for the sandbox server.
//
// It wraps pkg/client: each subcommand maps to one host tool, and
// "workflow run" executes a YAML, TOML or JSON workflow file. The server URL
// comes from --server or SANDBOX_URL.
package main
