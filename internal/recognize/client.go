package recognize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// SocketClient talks to the recognizer service over a unix socket, one
// JSON request and response per connection.
type SocketClient struct {
	socketPath     string
	requestTimeout time.Duration
}

// NewSocketClient returns a client for the recognizer at socketPath.
// A zero requestTimeout defaults to 30 seconds; recognition of a dense
// frame routinely takes several seconds.
func NewSocketClient(socketPath string, requestTimeout time.Duration) *SocketClient {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &SocketClient{socketPath: socketPath, requestTimeout: requestTimeout}
}

type recognizeRequest struct {
	Command   string `json:"command"`
	ImageData string `json:"image_data"`
}

type recognizeResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   struct {
		Results []Span `json:"results"`
	} `json:"data"`
}

// Recognize sends the image to the recognizer service and returns the raw
// spans. Confidence filtering is the caller's concern.
func (c *SocketClient) Recognize(ctx context.Context, imageData []byte) ([]Span, error) {
	dialer := net.Dialer{Timeout: c.requestTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect recognizer: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set recognizer deadline: %w", err)
	}

	req := recognizeRequest{
		Command:   "recognize",
		ImageData: base64.StdEncoding.EncodeToString(imageData),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send recognize request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	var resp recognizeResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read recognize response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("recognizer error: %s", resp.Error)
	}
	return resp.Data.Results, nil
}
