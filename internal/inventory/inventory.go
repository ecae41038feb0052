package inventory

import (
	"context"
	"fmt"
	"sync"

	"botqueue/internal/ports"
)

var _ ports.Inventory = (*Memory)(nil)

// Memory is an in-process stock table. Production deployments plug
// in the platform's inventory service behind ports.Inventory; this
// implementation serves tests and standalone runs.
type Memory struct {
	mu    sync.Mutex
	stock map[string]int
}

func NewMemory() *Memory {
	return &Memory{stock: make(map[string]int)}
}

func (m *Memory) SetStock(productID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
}

func (m *Memory) Available(ctx context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID], nil
}

func (m *Memory) Reserve(ctx context.Context, orderID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	have := m.stock[productID]
	if have < quantity {
		return fmt.Errorf("insufficient stock for %s: have %d, want %d", productID, have, quantity)
	}
	m.stock[productID] = have - quantity
	return nil
}
