package storagesvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"glimpse/internal/recognize"
)

// maxConcurrentRequests bounds in-flight connections to the service. The
// service serializes disk writes internally; more connections only add
// queueing on its side.
const maxConcurrentRequests = 2

// dialAttempts and dialBackoff shape the retry loop around transient
// connection refusals while the service restarts its listener.
const (
	dialAttempts = 6
	dialBackoff  = 20 * time.Millisecond
)

// SocketClient implements Client and Encryptor over the service's unix
// socket protocol.
type SocketClient struct {
	socketPath     string
	connectTimeout time.Duration
	requestTimeout time.Duration
	sem            chan struct{}

	encryptCache *textCache
	decryptCache *textCache
}

// NewSocketClient returns a client for the storage service at socketPath.
// Zero timeouts default to 2s connect and 30s request.
func NewSocketClient(socketPath string, connectTimeout, requestTimeout time.Duration) *SocketClient {
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &SocketClient{
		socketPath:     socketPath,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
		sem:            make(chan struct{}, maxConcurrentRequests),
		encryptCache:   newTextCache(cacheLimit),
		decryptCache:   newTextCache(cacheLimit),
	}
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const statusDuplicate = "duplicate"

// roundTrip sends one request and decodes the response envelope. A non-ok
// status other than duplicate becomes an error.
func (c *SocketClient) roundTrip(ctx context.Context, request any) (envelope, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return envelope{}, fmt.Errorf("connect storage service: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return envelope{}, fmt.Errorf("set storage deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return envelope{}, fmt.Errorf("send storage request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	var resp envelope
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return envelope{}, fmt.Errorf("read storage response: %w", err)
	}
	if resp.Status != "success" && resp.Status != statusDuplicate {
		return resp, fmt.Errorf("storage service error: %s", resp.Error)
	}
	return resp, nil
}

// dial retries briefly so a service mid-restart does not fail the frame.
func (c *SocketClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.connectTimeout}
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-time.After(dialBackoff << uint(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func stagePayload(req StageRequest) map[string]any {
	return map[string]any{
		"image_data":   base64.StdEncoding.EncodeToString(req.ImageData),
		"image_hash":   req.ImageHash,
		"width":        req.Width,
		"height":       req.Height,
		"window_title": req.WindowTitle,
		"process_name": req.ProcessName,
		"metadata":     req.Metadata,
	}
}

// Stage implements Client.
func (c *SocketClient) Stage(ctx context.Context, req StageRequest) (int64, error) {
	payload := stagePayload(req)
	payload["command"] = "save_screenshot_temp"

	resp, err := c.roundTrip(ctx, payload)
	if err != nil {
		return 0, err
	}
	var data struct {
		ScreenshotID flexibleID `json:"screenshot_id"`
		ID           flexibleID `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, fmt.Errorf("decode stage response: %w", err)
	}
	id := int64(data.ScreenshotID)
	if id == 0 {
		id = int64(data.ID)
	}
	if id == 0 {
		return 0, errors.New("stage response missing screenshot_id")
	}
	return id, nil
}

// Commit implements Client.
func (c *SocketClient) Commit(ctx context.Context, screenshotID int64, spans []recognize.Span) (SaveResult, error) {
	resp, err := c.roundTrip(ctx, map[string]any{
		"command":       "commit_screenshot",
		"screenshot_id": screenshotID,
		"ocr_results":   spanPayload(spans),
	})
	if err != nil {
		return SaveResult{}, err
	}
	result := decodeSaveResult(resp)
	if result.ScreenshotID == 0 {
		result.ScreenshotID = screenshotID
	}
	return result, nil
}

// Abort implements Client.
func (c *SocketClient) Abort(ctx context.Context, screenshotID int64, reason string) error {
	_, err := c.roundTrip(ctx, map[string]any{
		"command":       "abort_screenshot",
		"screenshot_id": screenshotID,
		"reason":        reason,
	})
	return err
}

// Save implements Client.
func (c *SocketClient) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	payload := stagePayload(req.StageRequest)
	payload["command"] = "save_screenshot"
	payload["ocr_results"] = spanPayload(req.Spans)

	resp, err := c.roundTrip(ctx, payload)
	if err != nil {
		return SaveResult{}, err
	}
	return decodeSaveResult(resp), nil
}

// Exists implements Client.
func (c *SocketClient) Exists(ctx context.Context, imageHash string) (bool, error) {
	resp, err := c.roundTrip(ctx, map[string]any{
		"command":    "screenshot_exists",
		"image_hash": imageHash,
	})
	if err != nil {
		return false, err
	}
	var data struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return false, fmt.Errorf("decode exists response: %w", err)
	}
	return data.Exists, nil
}

// Encrypt implements Encryptor.
func (c *SocketClient) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext != "" {
		if cached, ok := c.encryptCache.get(plaintext); ok {
			return cached, nil
		}
	}
	resp, err := c.roundTrip(ctx, map[string]any{
		"command":   "encrypt_for_chromadb",
		"plaintext": plaintext,
	})
	if err != nil {
		return "", err
	}
	var data struct {
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("decode encrypt response: %w", err)
	}
	if data.Encrypted != "" {
		c.encryptCache.set(plaintext, data.Encrypted)
	}
	return data.Encrypted, nil
}

// Decrypt implements Encryptor.
func (c *SocketClient) Decrypt(ctx context.Context, encrypted string) (string, error) {
	if encrypted != "" {
		if cached, ok := c.decryptCache.get(encrypted); ok {
			return cached, nil
		}
	}
	resp, err := c.roundTrip(ctx, map[string]any{
		"command":   "decrypt_from_chromadb",
		"encrypted": encrypted,
	})
	if err != nil {
		return "", err
	}
	var data struct {
		Decrypted string `json:"decrypted"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("decode decrypt response: %w", err)
	}
	c.decryptCache.set(encrypted, data.Decrypted)
	return data.Decrypted, nil
}

func spanPayload(spans []recognize.Span) []recognize.Span {
	if spans == nil {
		return []recognize.Span{}
	}
	return spans
}

func decodeSaveResult(resp envelope) SaveResult {
	result := SaveResult{Duplicate: resp.Status == statusDuplicate}
	if len(resp.Data) == 0 {
		return result
	}
	var data struct {
		Status       string     `json:"status"`
		ScreenshotID flexibleID `json:"screenshot_id"`
		ID           flexibleID `json:"id"`
		ImagePath    string     `json:"image_path"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return result
	}
	if data.Status == statusDuplicate {
		result.Duplicate = true
	}
	result.ScreenshotID = int64(data.ScreenshotID)
	if result.ScreenshotID == 0 {
		result.ScreenshotID = int64(data.ID)
	}
	result.ImagePath = data.ImagePath
	return result
}

// flexibleID decodes identifiers the service emits as either a JSON number
// or a numeric string.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse id %q: %w", s, err)
		}
		*f = flexibleID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n)
	return nil
}
