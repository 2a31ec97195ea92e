// Package store holds the shared state the realtime session feeds:
// the conversation log, the resolved product panel, and the cart. The
// session never mutates any of this directly; it relays events through
// the narrow interfaces below.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ketzcommerce/storevoice/pkg/catalog"
	"github.com/ketzcommerce/storevoice/pkg/realtime/protocol"
)

// Message is one finalized conversation log entry.
type Message struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// MessageLog receives finalized conversation entries: user utterances as
// soon as they are known, assistant text once a response completes.
type MessageLog interface {
	Append(role, content string) Message
}

// ProductStore receives the resolved products of the most recent search
// batch. Replace overwrites the previous result set wholesale.
type ProductStore interface {
	Replace(tool string, products []catalog.Product)
}

// CartStore receives cart tool events verbatim from the session.
type CartStore interface {
	Apply(action string, data json.RawMessage) error
}

// MemoryLog is an in-memory MessageLog.
type MemoryLog struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{messages: make([]Message, 0, 16)}
}

func (l *MemoryLog) Append(role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
	return msg
}

// Messages returns a copy of the log in append order.
func (l *MemoryLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// MemoryProducts is an in-memory ProductStore.
type MemoryProducts struct {
	mu       sync.Mutex
	tool     string
	products []catalog.Product
}

func NewMemoryProducts() *MemoryProducts {
	return &MemoryProducts{}
}

func (p *MemoryProducts) Replace(tool string, products []catalog.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tool = tool
	p.products = make([]catalog.Product, len(products))
	copy(p.products, products)
}

// Current returns the tool that produced the current result set and a
// copy of the products.
func (p *MemoryProducts) Current() (string, []catalog.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]catalog.Product, len(p.products))
	copy(out, p.products)
	return p.tool, out
}

// CartItem is one line in the cart.
type CartItem struct {
	ProductID string
	Name      string
	Quantity  int
}

// MemoryCart is an in-memory CartStore keyed by product ID.
type MemoryCart struct {
	mu    sync.Mutex
	items map[string]*CartItem
	order []string
}

func NewMemoryCart() *MemoryCart {
	return &MemoryCart{items: make(map[string]*CartItem)}
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

func (c *MemoryCart) Apply(action string, data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch action {
	case protocol.CartActionAdd:
		var payload cartItemPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", action, err)
		}
		if payload.ProductID == "" {
			return fmt.Errorf("%s: missing product_id", action)
		}
		qty := payload.Quantity
		if qty <= 0 {
			qty = 1
		}
		if item, ok := c.items[payload.ProductID]; ok {
			item.Quantity += qty
			return nil
		}
		c.items[payload.ProductID] = &CartItem{
			ProductID: payload.ProductID,
			Name:      payload.Name,
			Quantity:  qty,
		}
		c.order = append(c.order, payload.ProductID)
		return nil

	case protocol.CartActionRemove:
		var payload cartItemPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", action, err)
		}
		if payload.ProductID == "" {
			return fmt.Errorf("%s: missing product_id", action)
		}
		if _, ok := c.items[payload.ProductID]; !ok {
			return nil
		}
		delete(c.items, payload.ProductID)
		for i, id := range c.order {
			if id == payload.ProductID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return nil

	case protocol.CartActionClear:
		c.items = make(map[string]*CartItem)
		c.order = nil
		return nil

	case protocol.CartActionView:
		// The backend drives the view; nothing to mutate locally.
		return nil

	default:
		return fmt.Errorf("unknown cart action %q", action)
	}
}

// Items returns a copy of the cart in insertion order.
func (c *MemoryCart) Items() []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartItem, 0, len(c.order))
	for _, id := range c.order {
		if item, ok := c.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}
