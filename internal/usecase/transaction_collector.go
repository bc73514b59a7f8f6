package usecase

import (
	"context"
	"errors"

	"RiskPulse/internal/domain/models"
	drepo "RiskPulse/internal/domain/repository"
	mid "RiskPulse/internal/middleware"
	applogger "RiskPulse/pkg/logger"
)

var errStreamClosed = errors.New("transaction stream closed")

// TransactionCollector reads transactions from the upstream feed and hands
// them to the pipeline.
type TransactionCollector struct {
	stream  drepo.TransactionStream
	proc    *TransactionProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	l       *applogger.Logger
}

// NewTransactionCollector creates a new TransactionCollector instance.
func NewTransactionCollector(stream drepo.TransactionStream, proc *TransactionProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *TransactionCollector {
	return &TransactionCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// SetLogger sets optional logger.
func (c *TransactionCollector) SetLogger(l *applogger.Logger) { c.l = l }

// IsConnected returns true if the feed is connected.
func (c *TransactionCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TransactionCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	txCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, txCh, errCh)
	return nil
}

func (c *TransactionCollector) consume(ctx context.Context, txCh <-chan *models.TransactionRecord, errCh <-chan error) {
	for {
		err := c.drain(ctx, txCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		if c.l != nil {
			c.l.Warn("feed interrupted, reconnecting", applogger.Error(err))
		}
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			if c.l != nil {
				c.l.Error("feed reconnect failed", applogger.Error(rerr))
			}
		}
		txCh, errCh = c.stream.Read(ctx)
	}
}

// drain forwards records until the session fails or ctx is done.
func (c *TransactionCollector) drain(ctx context.Context, txCh <-chan *models.TransactionRecord, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return err
			}
		case t, ok := <-txCh:
			if !ok {
				return errStreamClosed
			}
			if t == nil {
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil && c.l != nil && !errors.Is(err, context.Canceled) {
				c.l.Warn("transaction rejected",
					applogger.String("id", t.ID),
					applogger.Error(err),
				)
			}
		}
	}
}

// Processor returns the underlying TransactionProcessor for lifecycle management.
func (c *TransactionCollector) Processor() *TransactionProcessor { return c.proc }

// Shutdown flushes the pipeline and closes the stream.
func (c *TransactionCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
