package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const (
	dialTimeout    = 2 * time.Second
	requestTimeout = 30 * time.Second
)

// controlClient speaks the daemon's JSON-per-request control protocol.
// The wall clock supplies the replay-protection sequence number, which
// keeps it strictly increasing across CLI invocations.
type controlClient struct {
	socket string
	token  string
	seq    func() int64
}

func newControlClient(socket, token string) *controlClient {
	return &controlClient{
		socket: socket,
		token:  token,
		seq:    func() int64 { return time.Now().UnixNano() },
	}
}

func (c *controlClient) request(command string, params map[string]any) (map[string]any, error) {
	payload := map[string]any{
		"command": command,
		"_seq_no": c.seq(),
	}
	if c.token != "" {
		payload["_auth_token"] = c.token
	}
	for key, value := range params {
		payload[key] = value
	}

	conn, err := net.DialTimeout("unix", c.socket, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(payload); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	var resp map[string]any
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if msg, ok := resp["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("daemon: %s", msg)
	}
	return resp, nil
}
