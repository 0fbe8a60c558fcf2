package storefront

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"Storefront/internal/catalog"
)

// CartItem holds the product fields copied when the line was first added.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

func (it CartItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Cart is a client-local basket. Lines keep insertion order and a line
// is dropped once its quantity reaches zero.
type Cart struct {
	mu    sync.RWMutex
	order []string
	items map[string]*CartItem
}

func NewCart() *Cart {
	return &Cart{items: make(map[string]*CartItem)}
}

// Add puts one unit of p in the cart.
func (c *Cart) Add(p catalog.Product) CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[p.ID]; ok {
		it.Quantity++
		return *it
	}

	it := &CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Category:  p.Category,
		Quantity:  1,
	}
	if len(p.Images) > 0 {
		it.Image = p.Images[0]
	}
	c.items[p.ID] = it
	c.order = append(c.order, p.ID)
	return *it
}

// SetQuantity sets the quantity of an existing line; n <= 0 removes it.
// It reports whether the line existed.
func (c *Cart) SetQuantity(id string, n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return false
	}
	if n <= 0 {
		c.removeLocked(id)
		return true
	}
	it.Quantity = n
	return true
}

func (c *Cart) Increment(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return false
	}
	it.Quantity++
	return true
}

func (c *Cart) Decrement(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return false
	}
	it.Quantity--
	if it.Quantity <= 0 {
		c.removeLocked(id)
	}
	return true
}

func (c *Cart) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false
	}
	c.removeLocked(id)
	return true
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.order = nil
	clear(c.items)
	c.mu.Unlock()
}

func (c *Cart) Quantity(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if it, ok := c.items[id]; ok {
		return it.Quantity
	}
	return 0
}

func (c *Cart) Items() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CartItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *Cart) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums line subtotals in decimal, rounded to cents.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}

func (c *Cart) removeLocked(id string) {
	delete(c.items, id)
	if i := slices.Index(c.order, id); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}
