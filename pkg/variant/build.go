package variant

// Builder assembles a list Value incrementally. The host's property-change
// payloads nest blocks several levels deep (AllTabs, PropServers,
// ChangedProps); the builder keeps that construction readable.
type Builder struct {
	items []*Value
}

// NewList starts a builder for an anonymous array.
func NewList() *Builder {
	return &Builder{}
}

// NewBlock starts a builder whose first item is the "NAME:name" marker.
func NewBlock(name string) *Builder {
	return &Builder{items: []*Value{Str(blockPrefix + name)}}
}

// Str appends a string item.
func (b *Builder) Str(s string) *Builder {
	b.items = append(b.items, Str(s))
	return b
}

// Num appends a number item.
func (b *Builder) Num(f float64) *Builder {
	b.items = append(b.items, Num(f))
	return b
}

// Int appends an integer item.
func (b *Builder) Int(i int) *Builder {
	b.items = append(b.items, Int(i))
	return b
}

// Bool appends a boolean item.
func (b *Builder) Bool(v bool) *Builder {
	b.items = append(b.items, Boolean(v))
	return b
}

// Add appends prebuilt values.
func (b *Builder) Add(items ...*Value) *Builder {
	b.items = append(b.items, items...)
	return b
}

// Pair appends the "key:=" marker followed by the value item.
func (b *Builder) Pair(key string, v *Value) *Builder {
	b.items = append(b.items, Str(key+pairSuffix), v)
	return b
}

// PairString appends a keyed string pair.
func (b *Builder) PairString(key, s string) *Builder {
	return b.Pair(key, Str(s))
}

// PairNumber appends a keyed number pair.
func (b *Builder) PairNumber(key string, f float64) *Builder {
	return b.Pair(key, Num(f))
}

// PairInt appends a keyed integer pair.
func (b *Builder) PairInt(key string, i int) *Builder {
	return b.Pair(key, Int(i))
}

// PairBool appends a keyed boolean pair.
func (b *Builder) PairBool(key string, v bool) *Builder {
	return b.Pair(key, Boolean(v))
}

// Block appends a nested block built by fn.
func (b *Builder) Block(name string, fn func(*Builder)) *Builder {
	nested := NewBlock(name)
	if fn != nil {
		fn(nested)
	}
	b.items = append(b.items, nested.Value())
	return b
}

// Value finalizes the builder into a list Value. The builder remains usable;
// further appends do not affect previously returned values.
func (b *Builder) Value() *Value {
	items := make([]*Value, len(b.items))
	copy(items, b.items)
	return &Value{kind: KindList, items: items}
}

// Block builds a one-shot named block from prebuilt items.
func Block(name string, items ...*Value) *Value {
	all := make([]*Value, 0, len(items)+1)
	all = append(all, Str(blockPrefix+name))
	all = append(all, items...)
	return &Value{kind: KindList, items: all}
}
