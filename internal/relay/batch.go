package relay

import "log/slog"

// Batch is one decoded station update. A repeated key keeps the position it
// was first seen at and the value it was last given.
type Batch struct {
	keys   []string
	values map[string]string
}

func NewBatch() *Batch {
	return &Batch{values: make(map[string]string)}
}

func (b *Batch) Set(key, value string) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

func (b *Batch) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Keys in arrival order
func (b *Batch) Keys() []string {
	keys := make([]string, len(b.keys))
	copy(keys, b.keys)
	return keys
}

func (b *Batch) Len() int { return len(b.keys) }

// LogValue renders the batch as a group so debug logs show every field.
func (b *Batch) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(b.keys))
	for _, k := range b.keys {
		attrs = append(attrs, slog.String(k, b.values[k]))
	}
	return slog.GroupValue(attrs...)
}
