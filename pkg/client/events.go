package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/battwatch/battwatch/pkg/events"
)

// SubscribeEvents streams daemon events until ctx is done or the
// connection drops. The channel is closed in both cases.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)

		req, err := c.newRequest(ctx, http.MethodGet, "/events", "")
		if err != nil {
			logrus.Errorf("failed to subscribe to events: %v", err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logrus.Debugf("failed to subscribe to events: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			logrus.Errorf("failed to subscribe to events: got %d", resp.StatusCode)
			return
		}

		if err := readEvents(ctx, resp.Body, out); err != nil && ctx.Err() == nil {
			logrus.Debugf("event stream ended: %v", err)
		}
	}()

	return out
}

// readEvents parses a text/event-stream body. Only the event and data
// fields are used.
func readEvents(ctx context.Context, r io.Reader, out chan<- events.Event) error {
	scanner := bufio.NewScanner(r)
	var name string
	var data []string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				ev := events.Event{Name: name, Data: []byte(strings.Join(data, "\n"))}
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			name, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return io.EOF
}
