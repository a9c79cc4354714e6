// Package page provides an in-memory page of elements addressed by selector.
// It stands in for a live browser behind the wait commands: the CLI loads one
// from a YAML fixture and agent mode mutates it over JSON-RPC.
package page

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/wait"
)

// ErrNoSuchElement is returned when a selector is not declared on the page.
var ErrNoSuchElement = errors.New("no such element")

// Element is the observable state of one element.
type Element struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Value   string `json:"value" yaml:"value"`
}

// fixtureElement lets fixtures omit "enabled"; elements are enabled unless
// stated otherwise.
type fixtureElement struct {
	Enabled *bool  `yaml:"enabled"`
	Value   string `yaml:"value"`
}

type fixture struct {
	Elements map[string][]fixtureElement `yaml:"elements"`
}

// Page maps selectors to the elements they match. A selector declared with
// no elements matches nothing but is not an error.
type Page struct {
	mu       sync.RWMutex
	elements map[string][]Element
	bus      events.EventBus
}

// New creates an empty page. bus may be nil.
func New(bus events.EventBus) *Page {
	return &Page{
		elements: make(map[string][]Element),
		bus:      bus,
	}
}

// Load reads a YAML fixture file into a new page.
func Load(path string, bus events.EventBus) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	p, err := Parse(data, bus)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return p, nil
}

// Parse builds a page from YAML fixture data.
func Parse(data []byte, bus events.EventBus) (*Page, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	p := New(bus)
	for selector, raw := range f.Elements {
		els := make([]Element, len(raw))
		for i, r := range raw {
			els[i] = Element{Enabled: r.Enabled == nil || *r.Enabled, Value: r.Value}
		}
		p.elements[selector] = els
	}
	return p, nil
}

// Set replaces the elements matched by selector.
func (p *Page) Set(selector string, els ...Element) {
	p.mu.Lock()
	p.elements[selector] = append([]Element{}, els...)
	p.mu.Unlock()

	if p.bus != nil {
		p.bus.Publish(events.NewEvent(events.EventPageChange, map[string]any{
			"selector": selector,
			"elements": els,
		}))
	}
}

// Remove undeclares selector; later queries fail with ErrNoSuchElement.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	delete(p.elements, selector)
	p.mu.Unlock()

	if p.bus != nil {
		p.bus.Publish(events.NewEvent(events.EventPageChange, map[string]any{
			"selector": selector,
			"removed":  true,
		}))
	}
}

// Elements returns the elements matched by selector.
func (p *Page) Elements(selector string) ([]Element, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	els, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, selector)
	}
	return append([]Element(nil), els...), nil
}

// Selectors returns every declared selector in sorted order.
func (p *Page) Selectors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.elements))
	for s := range p.elements {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// IsEnabled is a wait.Query reporting the enabled state of each match.
func (p *Page) IsEnabled(_ context.Context, selector string) (wait.State[bool], error) {
	return query(p, selector, func(e Element) bool { return e.Enabled })
}

// Value is a wait.Query reporting the value of each match.
func (p *Page) Value(_ context.Context, selector string) (wait.State[string], error) {
	return query(p, selector, func(e Element) string { return e.Value })
}

// query reports a scalar for exactly one match and a sequence otherwise.
func query[T any](p *Page, selector string, field func(Element) T) (wait.State[T], error) {
	els, err := p.Elements(selector)
	if err != nil {
		return wait.State[T]{}, err
	}
	if len(els) == 1 {
		return wait.Single(field(els[0])), nil
	}
	vals := make([]T, len(els))
	for i, e := range els {
		vals[i] = field(e)
	}
	return wait.Multiple(vals...), nil
}

var (
	_ wait.Query[bool]   = (*Page)(nil).IsEnabled
	_ wait.Query[string] = (*Page)(nil).Value
)
