package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Console writes one record per line to w, flushing after every record.
type Console struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: bufio.NewWriter(w)}
}

func (c *Console) Write(_ context.Context, record string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.WriteString(record + "\n"); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Flush()
}
