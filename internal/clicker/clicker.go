// Package clicker sends a single click request to the host.
package clicker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

var ErrClickRejected = errors.New("click rejected by host")

// maxBody caps how much of a response is read.
const maxBody = 64 * 1024

// RejectedError carries the host's answer to a refused click.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrClickRejected, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrClickRejected, e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrClickRejected
}

// Ack is the host's acknowledgement of an accepted click.
type Ack struct {
	Status string          `json:"status"`
	Room   protocol.RoomID `json:"room"`
	Sound  string          `json:"sound"`
}

// NewHTTPClient returns a client that dials through dial, e.g. a dns
// Resolver's DialContext. A nil dial keeps the default transport.
func NewHTTPClient(timeout time.Duration, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if dial != nil {
		transport.DialContext = dial
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Send asks the host to fan one click out to room.
func Send(ctx context.Context, client *http.Client, endpoint protocol.Endpoint, room protocol.RoomID, sound protocol.SoundReference) (*Ack, error) {
	if err := room.Validate(); err != nil {
		return nil, protocol.NewRoomError("click", room, err)
	}

	url := protocol.ClickURL(endpoint, room, sound)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, protocol.NewRoomError("click", room, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, protocol.NewRoomError("click", room, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, protocol.NewRoomError("click", room, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, protocol.NewRoomError("click", room, &RejectedError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		})
	}

	ack := &Ack{Room: room, Sound: sound.String()}
	if len(body) > 0 {
		// Hosts that answer without a body still count as accepted.
		_ = json.Unmarshal(body, ack)
	}
	return ack, nil
}

// errorMessage extracts echo's {"message": ...} error body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
