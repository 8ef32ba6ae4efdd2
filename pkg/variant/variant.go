// Package variant models the positional argument arrays consumed by the
// desktop host's automation API. An array mixes strings, numbers, booleans
// and nested arrays; two string conventions give the flat array structure:
// an item "NAME:Ident" opens a named block, and an item "key:=" marks the
// following item as that key's value. This package keeps the wire shape
// exactly as the host defines it and layers block/pair navigation on top.
package variant

import "strings"

// Kind identifies the type of a Value node.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindList
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindNumber: "number",
	KindBool:   "bool",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// blockPrefix marks the first item of a named block.
const blockPrefix = "NAME:"

// pairSuffix marks a string item as the key of the item that follows it.
const pairSuffix = ":="

// Value is one node of an argument array. The zero Value is an empty list.
type Value struct {
	kind  Kind
	str   string
	num   float64
	b     bool
	items []*Value
}

// Str returns a string Value.
func Str(s string) *Value {
	return &Value{kind: KindString, str: s}
}

// Num returns a number Value.
func Num(f float64) *Value {
	return &Value{kind: KindNumber, num: f}
}

// Int returns a number Value holding an integer.
func Int(i int) *Value {
	return &Value{kind: KindNumber, num: float64(i)}
}

// Boolean returns a bool Value.
func Boolean(v bool) *Value {
	return &Value{kind: KindBool, b: v}
}

// List returns a list Value containing the provided items.
func List(items ...*Value) *Value {
	return &Value{kind: KindList, items: items}
}

// Kind reports the node type.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindList
	}
	return v.kind
}

// AsString returns the string payload. ok is false for non-string nodes.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsFloat returns the numeric payload. ok is false for non-number nodes.
func (v *Value) AsFloat() (float64, bool) {
	if v == nil || v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsInt returns the numeric payload truncated to int. ok is false for
// non-number nodes.
func (v *Value) AsInt() (int, bool) {
	f, ok := v.AsFloat()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// AsBool returns the boolean payload. ok is false for non-bool nodes.
func (v *Value) AsBool() (bool, bool) {
	if v == nil || v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Len returns the number of items in a list node, zero otherwise.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	return len(v.items)
}

// Item returns the i-th item of a list node, nil when out of range.
func (v *Value) Item(i int) *Value {
	if v == nil || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Items returns a copy of the list's item slice.
func (v *Value) Items() []*Value {
	if v == nil {
		return nil
	}
	out := make([]*Value, len(v.items))
	copy(out, v.items)
	return out
}

// Append adds items to a list node in place and returns v for chaining.
// Appending to a non-list node panics: it always indicates a builder bug.
func (v *Value) Append(items ...*Value) *Value {
	if v.kind != KindList {
		panic("variant: Append on non-list value")
	}
	v.items = append(v.items, items...)
	return v
}

// BlockName reports the block name when v is a list whose first item is a
// "NAME:Ident" marker.
func (v *Value) BlockName() (string, bool) {
	if v == nil || v.kind != KindList || len(v.items) == 0 {
		return "", false
	}
	head, ok := v.items[0].AsString()
	if !ok || !strings.HasPrefix(head, blockPrefix) {
		return "", false
	}
	return head[len(blockPrefix):], true
}

// FindBlock returns the first nested block with the given name, searching
// the immediate items of v. Returns nil when absent.
func (v *Value) FindBlock(name string) *Value {
	if v == nil {
		return nil
	}
	for _, item := range v.items {
		if got, ok := item.BlockName(); ok && got == name {
			return item
		}
	}
	return nil
}

// Lookup scans the immediate items of v for the keyed pair "key:=" and
// returns the item that follows the marker.
func (v *Value) Lookup(key string) (*Value, bool) {
	if v == nil {
		return nil, false
	}
	marker := key + pairSuffix
	for i := 0; i < len(v.items)-1; i++ {
		if s, ok := v.items[i].AsString(); ok && s == marker {
			return v.items[i+1], true
		}
	}
	return nil, false
}

// LookupString returns the string payload of the keyed pair "key:=".
func (v *Value) LookupString(key string) (string, bool) {
	item, ok := v.Lookup(key)
	if !ok {
		return "", false
	}
	return item.AsString()
}

// LookupFloat returns the numeric payload of the keyed pair "key:=".
func (v *Value) LookupFloat(key string) (float64, bool) {
	item, ok := v.Lookup(key)
	if !ok {
		return 0, false
	}
	return item.AsFloat()
}

// LookupInt returns the integer payload of the keyed pair "key:=".
func (v *Value) LookupInt(key string) (int, bool) {
	item, ok := v.Lookup(key)
	if !ok {
		return 0, false
	}
	return item.AsInt()
}

// LookupBool returns the boolean payload of the keyed pair "key:=".
func (v *Value) LookupBool(key string) (bool, bool) {
	item, ok := v.Lookup(key)
	if !ok {
		return false, false
	}
	return item.AsBool()
}

// Blocks returns all immediate items of v that are named blocks.
func (v *Value) Blocks() []*Value {
	if v == nil {
		return nil
	}
	var out []*Value
	for _, item := range v.items {
		if _, ok := item.BlockName(); ok {
			out = append(out, item)
		}
	}
	return out
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{kind: v.kind, str: v.str, num: v.num, b: v.b}
	if v.items != nil {
		out.items = make([]*Value, len(v.items))
		for i, item := range v.items {
			out.items[i] = item.Clone()
		}
	}
	return out
}

// Equal reports whether two Value trees are structurally identical.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a.Len() == 0 && b.Len() == 0 && a.Kind() == b.Kind()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num
	case KindBool:
		return a.b == b.b
	case KindList:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
