package server

import (
	"context"
	"fmt"

	"courier/domain"
	"courier/errors"
)

// ConnSink bridges the delivery router and one connection's write pump
// through a buffered channel. The router pushes with a bounded context;
// a pump that cannot drain in time surfaces as a delivery error on that
// connection only.
type ConnSink struct {
	Messages chan domain.Message
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Messages: make(chan domain.Message, bufferSize)}
}

// Consume hands the message to the connection's write pump. It blocks until
// the buffer accepts it or the caller's context expires.
func (s *ConnSink) Consume(ctx context.Context, msg domain.Message) error {
	select {
	case s.Messages <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrConnectionSaturated, ctx.Err())
	}
}
