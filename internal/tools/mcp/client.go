// Package mcp implements a minimal MCP (Model Context Protocol) client over
// stdio JSON-RPC, hand-rolled rather than pulled from a third-party SDK:
// no MCP client library is present anywhere in the corpus this module was
// grounded on, and the protocol itself (newline-delimited JSON-RPC 2.0
// request/response framing over a child process's stdin/stdout) is narrow
// enough that a thin implementation beats a new external dependency with
// only this one caller.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

const (
	KindSpawnFailed   = "mcp.spawn_failed"
	KindProtocolError = "mcp.protocol_error"
	KindServerError   = "mcp.server_error"
	KindTimeout       = "mcp.timeout"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolDescriptor is one tool an MCP server advertises via tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Client is a connection to one MCP server process, speaking JSON-RPC 2.0
// over its stdin/stdout.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan response
}

// Connect spawns command with args/env and performs the MCP initialize
// handshake.
func Connect(ctx context.Context, command string, args []string, env map[string]string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, xerrors.Wrap(KindSpawnFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, xerrors.Wrap(KindSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, xerrors.Wrap(KindSpawnFailed, err)
	}

	c := &Client{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		pending: make(map[int64]chan response),
	}
	go c.readLoop()

	if _, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]string{"name": "hexis", "version": "1"},
	}); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readLoop() {
	for {
		line, err := c.stdout.ReadBytes('\n')
		if len(line) > 0 {
			var resp response
			if jerr := json.Unmarshal(line, &resp); jerr == nil {
				c.mu.Lock()
				ch, ok := c.pending[resp.ID]
				if ok {
					delete(c.pending, resp.ID)
				}
				c.mu.Unlock()
				if ok {
					ch <- resp
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(KindProtocolError, err)
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	raw = append(raw, '\n')
	if _, err := c.stdin.Write(raw); err != nil {
		return nil, xerrors.Wrap(KindServerError, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, xerrors.Newf(KindServerError, "mcp server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, xerrors.Newf(KindTimeout, "mcp call %q timed out: %s", method, ctx.Err())
	case <-time.After(30 * time.Second):
		return nil, xerrors.Newf(KindTimeout, "mcp call %q timed out waiting for response", method)
	}
}

// ListTools calls tools/list.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	raw, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, xerrors.Wrap(KindProtocolError, err)
	}
	return parsed.Tools, nil
}

// CallTool calls tools/call for a specific tool name with arguments.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	return c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
}

// Close terminates the server process.
func (c *Client) Close() error {
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
