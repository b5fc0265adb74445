package managed

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Class describes a native Go type exposed through the managed
// environment. Explicitly registered methods take precedence over the
// type's own method set; statics and the constructor are reached through
// the class proxy returned by FindProxy.
type Class struct {
	Name   string
	GoType reflect.Type

	mu      sync.RWMutex
	methods map[string]reflect.Value
	statics map[string]reflect.Value
	ctor    reflect.Value
}

// Method registers fn as the selector on instances of the class. fn takes
// the receiver as its first parameter.
func (c *Class) Method(selector string, fn any) *Class {
	v := mustFunc(c.Name, selector, fn)
	if v.Type().NumIn() == 0 {
		panic(fmt.Sprintf("managed: %s %s: method needs a receiver parameter", c.Name, selector))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[selector] = v
	return c
}

// Static registers fn as a class-level selector.
func (c *Class) Static(selector string, fn any) *Class {
	v := mustFunc(c.Name, selector, fn)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statics[selector] = v
	return c
}

// Constructor registers the function behind the "new" selector.
func (c *Class) Constructor(fn any) *Class {
	v := mustFunc(c.Name, "new", fn)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctor = v
	return c
}

func (c *Class) lookupMethod(selector string) (reflect.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.methods[selector]
	return fn, ok
}

func (c *Class) lookupStatic(selector string) (reflect.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if selector == "new" && c.ctor.IsValid() {
		return c.ctor, true
	}
	fn, ok := c.statics[selector]
	return fn, ok
}

func mustFunc(class, selector string, fn any) reflect.Value {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("managed: %s %s: expected a func, got %T", class, selector, fn))
	}
	return v
}

// ClassTable maps Go types to classes and class names to classes.
// Safe for concurrent registration and lookup.
type ClassTable struct {
	mu     sync.RWMutex
	byName map[string]*Class
	byType map[reflect.Type]*Class
}

// NewClassTable creates an empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		byName: make(map[string]*Class),
		byType: make(map[reflect.Type]*Class),
	}
}

// Register adds a class for goType. Registering the same type again
// returns the existing class.
func (t *ClassTable) Register(name string, goType reflect.Type) *Class {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.byType[goType]; ok {
		return c
	}
	c := &Class{
		Name:    name,
		GoType:  goType,
		methods: make(map[string]reflect.Value),
		statics: make(map[string]reflect.Value),
	}
	t.byName[name] = c
	t.byType[goType] = c
	return c
}

// Lookup returns the class registered under name.
func (t *ClassTable) Lookup(name string) *Class {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byName[name]
}

// LookupByType returns the class registered for goType.
func (t *ClassTable) LookupByType(goType reflect.Type) *Class {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byType[goType]
}

// Names lists registered class names in sorted order.
func (t *ClassTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultClasses backs the process-wide managed environment.
var DefaultClasses = NewClassTable()

// Register adds T to DefaultClasses under name.
func Register[T any](name string) *Class {
	return DefaultClasses.Register(name, reflect.TypeFor[T]())
}
