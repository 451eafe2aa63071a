package job

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// rpcPayload is the JSON body posted to the server's rcv_data endpoint
// (spec.md §4.8): one composition's hash and its published result.
type rpcPayload struct {
	Hash   string `json:"hash"`
	Result any    `json:"result"`
}

// RPCSend builds the client-side send callback RunComposition hands to
// SystemFilter Send: a JSON POST of {hash, result} against the server's
// rcv_data route (spec.md §4.8, §6's bootstrap/RPC contract). Grounded on
// original_source/penchy/jobs/job.py's XML-RPC `self.client.rcv_data`
// call, re-expressed over HTTP+JSON with github.com/go-resty/resty/v2 —
// the teacher's own dependency-resolver HTTP client — rather than
// introducing Go's net/rpc or a bespoke XML-RPC client.
func RPCSend(client *resty.Client, serverAddr string) func(hash string, data any) error {
	endpoint := fmt.Sprintf("http://%s/rcv_data", serverAddr)
	return func(hash string, data any) error {
		resp, err := client.R().
			SetBody(rpcPayload{Hash: hash, Result: data}).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("rcv_data call to %s failed: %w", serverAddr, err)
		}
		if resp.IsError() {
			return fmt.Errorf("rcv_data call to %s returned %s", serverAddr, resp.Status())
		}
		return nil
	}
}

// RPCStartTimeout posts a start_timeout call (spec.md §5's timeout hook
// pair) arming the server's deadline timer for hash, before the client
// enters its JVM invocation loop.
func RPCStartTimeout(client *resty.Client, serverAddr string) func(hash string, deadline time.Duration) error {
	endpoint := fmt.Sprintf("http://%s/start_timeout", serverAddr)
	return func(hash string, deadline time.Duration) error {
		resp, err := client.R().
			SetBody(map[string]any{"hash": hash, "deadline_seconds": deadline.Seconds()}).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("start_timeout call to %s failed: %w", serverAddr, err)
		}
		if resp.IsError() {
			return fmt.Errorf("start_timeout call to %s returned %s", serverAddr, resp.Status())
		}
		return nil
	}
}

// RPCStopTimeout posts a stop_timeout call, disarming hash's deadline once
// its result (or error) is already on its way to rcv_data/node_error.
func RPCStopTimeout(client *resty.Client, serverAddr string) func(hash string) error {
	endpoint := fmt.Sprintf("http://%s/stop_timeout", serverAddr)
	return func(hash string) error {
		resp, err := client.R().
			SetBody(map[string]string{"hash": hash}).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("stop_timeout call to %s failed: %w", serverAddr, err)
		}
		if resp.IsError() {
			return fmt.Errorf("stop_timeout call to %s returned %s", serverAddr, resp.Status())
		}
		return nil
	}
}

// RPCNodeError posts a node_error notification (spec.md §4.8) for hash,
// with an optional reason. Used by the client bootstrap when a composition
// cannot run at all (e.g. dependency resolution failed before any flow
// executed, so Send was never reached to report it).
func RPCNodeError(client *resty.Client, serverAddr string) func(hash string, reason string) error {
	endpoint := fmt.Sprintf("http://%s/node_error", serverAddr)
	return func(hash string, reason string) error {
		resp, err := client.R().
			SetBody(map[string]string{"hash": hash, "reason": reason}).
			Post(endpoint)
		if err != nil {
			return fmt.Errorf("node_error call to %s failed: %w", serverAddr, err)
		}
		if resp.IsError() {
			return fmt.Errorf("node_error call to %s returned %s", serverAddr, resp.Status())
		}
		return nil
	}
}
