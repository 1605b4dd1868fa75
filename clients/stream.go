package clients

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// StatusEventType classifies what a payment status stream delivered:
// a progress report, one of the two terminal outcomes, or a stream
// failure (malformed payload or dropped connection).
type StatusEventType string

const (
	EventProgress    StatusEventType = "progress"
	EventCompleted   StatusEventType = "completed"
	EventFailed      StatusEventType = "failed"
	EventStreamError StatusEventType = "stream_error"
)

type StatusEvent struct {
	Type    StatusEventType
	Message string
}

// StatusStream is a long-lived SSE connection delivering payment status
// events for one order. Events arrive on Events(); the channel closes
// when the connection ends. Close is safe to call more than once and
// from any goroutine.
type StatusStream struct {
	orderID string
	events  chan StatusEvent
	ctx     context.Context
	cancel  context.CancelFunc
	body    io.ReadCloser
	logger  *zap.Logger

	closeOnce sync.Once
}

// StreamPaymentStatus opens the server-push status stream for an order.
// The connection deliberately bypasses the client's request timeout; its
// lifetime is bounded by ctx and by Close.
func (c *OrderClient) StreamPaymentStatus(ctx context.Context, orderID string) (*StatusStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	fullURL := c.baseURL + "/orders/payment/status/" + url.PathEscape(orderID)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		cancel()
		return nil, mapTransportError(err)
	}
	req.Header.Set("Accept", "text/event-stream")

	streamClient := &http.Client{Transport: c.client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, mapTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		err := mapStatusError(resp)
		resp.Body.Close()
		cancel()
		return nil, err
	}

	s := &StatusStream{
		orderID: orderID,
		events:  make(chan StatusEvent, 8),
		ctx:     streamCtx,
		cancel:  cancel,
		body:    resp.Body,
		logger:  c.logger,
	}
	go s.read()

	c.logger.Info("Payment status stream opened", zap.String("order_id", orderID))
	return s, nil
}

func (s *StatusStream) Events() <-chan StatusEvent {
	return s.events
}

// Close tears the connection down. The read loop then drains out and
// closes the events channel.
func (s *StatusStream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.body.Close()
		s.logger.Info("Payment status stream closed", zap.String("order_id", s.orderID))
	})
}

func (s *StatusStream) read() {
	defer close(s.events)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	var eventName, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				s.dispatch(eventName, data)
			}
			eventName, data = "", ""
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	// EOF or transport error. If the stream was closed locally this is
	// expected; otherwise the connection dropped mid-monitoring.
	if s.ctx.Err() == nil {
		s.emit(StatusEvent{Type: EventStreamError, Message: "Connection error while monitoring payment status"})
	}
}

// dispatch interprets one named SSE event. Only "status" events carry
// payment state; anything undecodable or unrecognized is a stream error
// so the session is never left open on unparseable input.
func (s *StatusStream) dispatch(eventName, data string) {
	if eventName != "status" {
		return
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		s.logger.Warn("Malformed payment status event",
			zap.String("order_id", s.orderID),
			zap.Error(err),
		)
		s.emit(StatusEvent{Type: EventStreamError, Message: "Invalid status format"})
		return
	}

	switch payload.Status {
	case "PROCESSING":
		s.emit(StatusEvent{Type: EventProgress, Message: payload.Message})
	case "COMPLETED":
		s.emit(StatusEvent{Type: EventCompleted, Message: payload.Message})
	case "FAILED":
		s.emit(StatusEvent{Type: EventFailed, Message: payload.Message})
	default:
		s.logger.Warn("Unrecognized payment status",
			zap.String("order_id", s.orderID),
			zap.String("status", payload.Status),
		)
		s.emit(StatusEvent{Type: EventStreamError, Message: "Invalid status format"})
	}
}

func (s *StatusStream) emit(event StatusEvent) {
	select {
	case s.events <- event:
	case <-s.ctx.Done():
	}
}
