package objectstream

// Handle is the wire identity of a referenceable entity. Handles are
// assigned sequentially from baseWireHandle in stream order and are
// never reused within a decode session, even across degenerate entities.
type Handle int32

type handleEntry struct {
	value Value
	bound bool
}

// handleTable maps handles to decoded entities. An entity reserves its
// handle before its contents are decoded, so a back-reference read while
// the entity is still in progress resolves to the in-progress value.
type handleTable struct {
	entries []handleEntry
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

// reserve allocates the next handle. The slot stays unbound until bind
// is called for it.
func (t *handleTable) reserve() Handle {
	t.entries = append(t.entries, handleEntry{})
	return Handle(baseWireHandle + int32(len(t.entries)) - 1)
}

// bind attaches a value to a previously reserved handle. For entities
// that can contain themselves (objects, arrays, descriptors) the caller
// binds the freshly allocated shell before recursing into its contents.
func (t *handleTable) bind(h Handle, v Value) {
	t.entries[int32(h)-baseWireHandle] = handleEntry{value: v, bound: true}
}

// resolve looks up a bound entity. A handle outside the reserved range
// (including one cleared by reset) is ErrUnknownHandle; a reserved but
// unbound slot is ErrUnboundHandle.
func (t *handleTable) resolve(h Handle) (Value, error) {
	i := int32(h) - baseWireHandle
	if i < 0 || int(i) >= len(t.entries) {
		return nil, ErrUnknownHandle
	}
	e := t.entries[i]
	if !e.bound {
		return nil, ErrUnboundHandle
	}
	return e.value, nil
}

// reset clears all entries; the next reserve restarts at baseWireHandle.
// Triggered by the TC_RESET marker between independent stream sections.
func (t *handleTable) reset() {
	t.entries = t.entries[:0]
}
