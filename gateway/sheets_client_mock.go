package gateway

import (
	"context"
	"sync"
)

type SheetsMock struct {
	lock sync.Mutex

	Rows map[string][][]string
}

func (c *SheetsMock) AppendRow(ctx context.Context, sheetID string, row []string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Rows == nil {
		c.Rows = make(map[string][][]string)
	}

	c.Rows[sheetID] = append(c.Rows[sheetID], row)

	return nil
}

func (c *SheetsMock) RowsOf(sheetID string) [][]string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([][]string(nil), c.Rows[sheetID]...)
}
