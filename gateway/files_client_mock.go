package gateway

import (
	"context"
	"fmt"
	"sync"
)

type FilesMock struct {
	lock  sync.Mutex
	files map[string][]byte
}

func (c *FilesMock) Put(ctx context.Context, name string, content []byte) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.files == nil {
		c.files = make(map[string][]byte)
	}

	c.files[name] = content

	return name, nil
}

func (c *FilesMock) Get(ctx context.Context, ref string) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	content, ok := c.files[ref]
	if !ok {
		return nil, fmt.Errorf("file %s not found", ref)
	}

	return content, nil
}
