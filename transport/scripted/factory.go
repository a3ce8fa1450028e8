package scripted

import (
	"sync"

	"browser-http/transport"
)

const createdBuffer = 64

// Factory creates scripted primitives sharing one script.
type Factory struct {
	script Script

	mu         sync.Mutex
	primitives []*Primitive
	created    chan *Primitive
}

var _ transport.Factory = (*Factory)(nil)

func NewFactory(script Script) *Factory {
	return &Factory{
		script:  script,
		created: make(chan *Primitive, createdBuffer),
	}
}

func (f *Factory) New() transport.Primitive {
	p := New(f.script)

	f.mu.Lock()
	f.primitives = append(f.primitives, p)
	f.mu.Unlock()

	select {
	case f.created <- p:
	default:
		// Nobody is draining. Primitives stays the source of truth.
	}
	return p
}

// Created delivers primitives as they are created.
func (f *Factory) Created() <-chan *Primitive { return f.created }

func (f *Factory) Primitives() []*Primitive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Primitive(nil), f.primitives...)
}

func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.primitives)
}
