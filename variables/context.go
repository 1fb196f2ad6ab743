// Package variables implements the per-execution variable store that test actions read and
// write, and the ${...} substitution language applied to action fields.
package variables

import (
	"fmt"
	"strings"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Context is a name-to-value store scoped to one test case execution.
//
// It is safe for concurrent use. Every write is applied under an exclusive lock and every
// read sees the latest completed write. When two Parallel branches write the same name the
// last write to acquire the lock wins; tests must not depend on which branch that is.
type Context struct {
	values    map[string]ldvalue.Value
	order     []string
	functions *FunctionRegistry
	lock      sync.RWMutex
}

// Entry is one variable in a Dump.
type Entry struct {
	Name  string
	Value ldvalue.Value
}

// NewContext creates an empty Context. If functions is nil, the built-in function set is
// used.
func NewContext(functions *FunctionRegistry) *Context {
	if functions == nil {
		functions = NewFunctionRegistry()
	}
	return &Context{
		values:    make(map[string]ldvalue.Value),
		functions: functions,
	}
}

// Functions returns the registry used for ${fn(...)} placeholders.
func (c *Context) Functions() *FunctionRegistry { return c.functions }

// Set stores a value, replacing any earlier value for the same name.
func (c *Context) Set(name string, value ldvalue.Value) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

// SetString is shorthand for Set(name, ldvalue.String(value)).
func (c *Context) SetString(name, value string) { c.Set(name, ldvalue.String(value)) }

// Get returns the value of a variable and whether it exists.
func (c *Context) Get(name string) (ldvalue.Value, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// GetString returns the substitution form of a variable: the raw text for strings and the
// JSON representation for anything else.
func (c *Context) GetString(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok {
		return "", false
	}
	return ValueString(v), true
}

// Delete removes a variable.
func (c *Context) Delete(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, exists := c.values[name]; !exists {
		return
	}
	delete(c.values, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Names returns the variable names in the order they were first written.
func (c *Context) Names() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]string(nil), c.order...)
}

// Dump returns every variable in the order it was first written.
func (c *Context) Dump() []Entry {
	c.lock.RLock()
	defer c.lock.RUnlock()
	ret := make([]Entry, 0, len(c.order))
	for _, name := range c.order {
		ret = append(ret, Entry{Name: name, Value: c.values[name]})
	}
	return ret
}

// String renders the Dump for diagnostics.
func (c *Context) String() string {
	entries := c.Dump()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%s", e.Name, e.Value.JSONString()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ValueString converts a value to the text used when it is substituted into a field.
func ValueString(v ldvalue.Value) string {
	if v.IsString() {
		return v.StringValue()
	}
	return v.JSONString()
}
