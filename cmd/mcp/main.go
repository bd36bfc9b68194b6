package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tazhate/calbridge/internal/dispatch"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCPServer forwards tool calls to the calbridge HTTP API.
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
}

func NewMCPServer() *MCPServer {
	apiURL := os.Getenv("CALBRIDGE_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: os.Getenv("API_USERNAME"),
		apiPassword: os.Getenv("API_PASSWORD"),
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// Run answers one JSON-RPC request per input line.
func (s *MCPServer) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "Error reading: %v\n", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing JSON: %v\n", err)
			continue
		}

		// Notifications carry no id and get no answer.
		if strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		responseBytes, _ := json.Marshal(s.handleRequest(req))
		fmt.Fprintln(out, string(responseBytes))
	}
}

func reply(id, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func fail(id any, code int, message string, data any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		var res InitializeResult
		res.ProtocolVersion = "2024-11-05"
		res.Capabilities = map[string]any{"tools": map[string]any{}}
		res.ServerInfo.Name, res.ServerInfo.Version = "calbridge-mcp", "1.0.0"
		return reply(req.ID, res)
	case "ping":
		return reply(req.ID, map[string]any{})
	case "tools/list":
		tools, err := s.listTools()
		if err != nil {
			return fail(req.ID, -32603, "Cannot load command catalog", err.Error())
		}
		return reply(req.ID, ToolsListResult{Tools: tools})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return fail(req.ID, -32602, "Invalid params", nil)
		}
		if params.Arguments == nil {
			params.Arguments = map[string]any{}
		}
		text, isError := s.callCommand(params.Name, params.Arguments)
		return reply(req.ID, ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: isError})
	}
	return fail(req.ID, -32601, "Method not found", nil)
}

// listTools turns the command catalog into tool definitions.
func (s *MCPServer) listTools() ([]Tool, error) {
	body, status, err := s.apiRequest(http.MethodGet, "/api/commands", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog: status %d: %s", status, strings.TrimSpace(string(body)))
	}
	var catalog []dispatch.CommandInfo
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	tools := make([]Tool, 0, len(catalog))
	for _, c := range catalog {
		desc := c.Description
		if c.Access != "" {
			desc += " (requires " + c.Access + " access)"
		}
		tools = append(tools, Tool{Name: c.Name, Description: desc, InputSchema: c.InputSchema()})
	}
	return tools, nil
}

// callCommand posts to /api/call/{name}; rejections become error text.
func (s *MCPServer) callCommand(name string, args map[string]any) (string, bool) {
	body, status, err := s.apiRequest(http.MethodPost, "/api/call/"+url.PathEscape(name), args)
	if err != nil {
		return err.Error(), true
	}
	if status != http.StatusOK {
		var rej pluginerr.Rejection
		if json.Unmarshal(body, &rej) == nil && rej.Message != "" {
			return fmt.Sprintf("%s (%s)", rej.Message, rej.Data.Type), true
		}
		return fmt.Sprintf("API Error %d: %s", status, strings.TrimSpace(string(body))), true
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return string(body), false
	}
	return strings.TrimSpace(pretty.String()), false
}

func (s *MCPServer) apiRequest(method, path string, body any) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.apiURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if s.apiUsername != "" {
		req.SetBasicAuth(s.apiUsername, s.apiPassword)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func main() {
	_ = godotenv.Load()
	NewMCPServer().Run(os.Stdin, os.Stdout)
}
