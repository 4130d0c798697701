/*
Package client calls a running sandbox server on behalf of a host agent.

Every call returns either the server's payload or a *protocol.Error:

  - transport failures (connection refused, timeouts) are SandboxUnreachable;
  - non-2xx answers carrying {ok:false, error_kind, message} keep their kind;
  - anything else is SandboxError.

The client never retries. Retry policy belongs to the caller, which can use
the Suggestion of a tool Result to decide when to reset the sandbox.

# Usage

	c, err := client.NewFromEnv() // SANDBOX_URL, default http://localhost:8001
	if err != nil {
		return err
	}
	if _, err := c.WaitUntilHealthy(ctx, time.Second); err != nil {
		return err
	}
	page, err := c.OpenPage(ctx, "https://example.com")

Tool-call hosts use Tools and Execute; scripted runs use LoadWorkflow and
RunWorkflow.
*/
package client
