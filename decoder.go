package objectstream

import "fmt"

// DefaultMaxDepth bounds content recursion when Options.MaxDepth is
// zero. Nesting in real streams is shallow; adversarial input can make
// it proportional to stream size.
const DefaultMaxDepth = 512

// Options configures a decode session.
type Options struct {
	// CaptureBlockData attaches custom-serialized regions (block data
	// and values written by writeObject) to the decoded instance as its
	// Annotation. When false the decoder still walks those regions to
	// find their terminator, but discards the contents.
	CaptureBlockData bool

	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

// Decoder decodes Java Object Serialization Stream content from an
// in-memory buffer, without the original class definitions. A Decoder
// owns its cursor and handle table; independent Decoders may run in
// parallel, a single Decoder must not be shared.
type Decoder struct {
	cur     *cursor
	handles *handleTable
	opts    Options
	depth   int
}

// Decode parses a complete stream: the magic/version header followed by
// one top-level content record.
func Decode(data []byte, opts *Options) (Value, error) {
	dec, err := NewDecoder(data, opts)
	if err != nil {
		return nil, err
	}
	return dec.Decode()
}

// NewDecoder validates the stream header and returns a decoder for the
// records that follow. Use it instead of Decode when a stream carries
// several top-level records back to back.
func NewDecoder(data []byte, opts *Options) (*Decoder, error) {
	dec := &Decoder{
		cur:     &cursor{buf: data},
		handles: newHandleTable(),
	}
	if opts != nil {
		dec.opts = *opts
	}
	if dec.opts.MaxDepth <= 0 {
		dec.opts.MaxDepth = DefaultMaxDepth
	}
	if err := dec.readHeader(); err != nil {
		return nil, err
	}
	return dec, nil
}

// Decode reads the next top-level content record.
func (dec *Decoder) Decode() (Value, error) {
	dec.depth = 0
	return dec.readContent()
}

// More reports whether unread bytes remain after the last record.
func (dec *Decoder) More() bool {
	return dec.cur.remaining() > 0
}

func (dec *Decoder) readHeader() error {
	magic, err := dec.cur.readU16()
	if err != nil {
		return err
	}
	version, err := dec.cur.readI16()
	if err != nil {
		return err
	}
	if magic != StreamMagic {
		return errAt(ErrBadStreamHeader, 0, "invalid magic %#04x", magic)
	}
	if version != StreamVersion {
		return errAt(ErrBadStreamHeader, 2, "unsupported version %d", version)
	}
	return nil
}

// readContent decodes one content record, dispatching on its type tag.
// It is the single recursion point: field values, array elements and
// annotation contents all come back through here.
func (dec *Decoder) readContent() (Value, error) {
	if dec.depth >= dec.opts.MaxDepth {
		return nil, errAt(ErrNestingTooDeep, dec.cur.offset(), "recursion limit %d reached", dec.opts.MaxDepth)
	}
	dec.depth++
	defer func() { dec.depth-- }()

	for {
		off := dec.cur.offset()
		tc, err := dec.cur.readU8()
		if err != nil {
			return nil, err
		}
		switch tc {
		case TcReset:
			// All handles written so far are withdrawn; the stream
			// continues with a fresh context.
			dec.handles.reset()
			continue
		case TcNull:
			return Null{}, nil
		case TcReference:
			return dec.readReference()
		case TcString:
			s, err := dec.readNewString(false)
			if err != nil {
				return nil, err
			}
			return s, nil
		case TcLongstring:
			s, err := dec.readNewString(true)
			if err != nil {
				return nil, err
			}
			return s, nil
		case TcArray:
			return dec.readNewArray(off)
		case TcEnum:
			return dec.readNewEnum(off)
		case TcObject:
			return dec.readNewObject(off)
		case TcClass:
			desc, err := dec.readClassDesc()
			if err != nil {
				return nil, err
			}
			cls := &Class{Desc: desc}
			h := dec.handles.reserve()
			dec.handles.bind(h, cls)
			return cls, nil
		case TcClassdesc:
			desc, err := dec.readNonProxyDesc()
			if err != nil {
				return nil, err
			}
			return &Class{Desc: desc}, nil
		case TcProxyclassdesc:
			desc, err := dec.readProxyDesc()
			if err != nil {
				return nil, err
			}
			return &Class{Desc: desc}, nil
		case TcBlockdata:
			n, err := dec.cur.readU8()
			if err != nil {
				return nil, err
			}
			return dec.readBlockBody(int(n))
		case TcBlockdatalong:
			lenOff := dec.cur.offset()
			n, err := dec.cur.readI32()
			if err != nil {
				return nil, err
			}
			if n < 0 {
				return nil, errAt(ErrUnexpectedTag, lenOff, "negative block data length %d", n)
			}
			return dec.readBlockBody(int(n))
		case TcException:
			return nil, dec.readAbort(off)
		case TcEndblockdata:
			return nil, errAt(ErrUnexpectedTag, off, "end of block data outside an annotation")
		default:
			return nil, errAt(ErrUnexpectedTag, off, "invalid type code: %#02x", tc)
		}
	}
}

func (dec *Decoder) readBlockBody(n int) (Value, error) {
	p, err := dec.cur.readBytes(n)
	if err != nil {
		return nil, err
	}
	return BlockData(append([]byte(nil), p...)), nil
}

func (dec *Decoder) readReference() (Value, error) {
	off := dec.cur.offset()
	raw, err := dec.cur.readI32()
	if err != nil {
		return nil, err
	}
	v, err := dec.handles.resolve(Handle(raw))
	if err != nil {
		return nil, errAt(err, off, "handle %#08x", raw)
	}
	return v, nil
}

func (dec *Decoder) readNewString(long bool) (String, error) {
	h := dec.handles.reserve()
	var (
		s   string
		err error
	)
	if long {
		s, err = dec.cur.readLongUTF()
	} else {
		s, err = dec.cur.readUTF()
	}
	if err != nil {
		return "", err
	}
	v := String(s)
	dec.handles.bind(h, v)
	return v, nil
}

// readTypeString decodes a string content record where the grammar
// requires a string: field type signatures and enum constant names.
// Both may be back-references to strings seen earlier.
func (dec *Decoder) readTypeString() (string, error) {
	off := dec.cur.offset()
	tc, err := dec.cur.readU8()
	if err != nil {
		return "", err
	}
	switch tc {
	case TcString:
		s, err := dec.readNewString(false)
		return string(s), err
	case TcLongstring:
		s, err := dec.readNewString(true)
		return string(s), err
	case TcReference:
		v, err := dec.readReference()
		if err != nil {
			return "", err
		}
		s, ok := v.(String)
		if !ok {
			return "", errAt(ErrUnexpectedTag, off, "reference does not resolve to a string")
		}
		return string(s), nil
	default:
		return "", errAt(ErrUnexpectedTag, off, "expected a string record, got type code %#02x", tc)
	}
}

func (dec *Decoder) readNewArray(off int) (Value, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errAt(ErrUnexpectedTag, off, "array with null class descriptor")
	}
	arr := &Array{Signature: desc.Name}
	h := dec.handles.reserve()
	dec.handles.bind(h, arr)

	lenOff := dec.cur.offset()
	n, err := dec.cur.readI32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errAt(ErrUnexpectedTag, lenOff, "negative array length %d", n)
	}
	// Every element takes at least one byte, so a length beyond the
	// remaining buffer can never decode; fail before allocating.
	if int(n) > dec.cur.remaining() {
		return nil, errAt(ErrTruncatedStream, lenOff, "array length %d, %d bytes remain", n, dec.cur.remaining())
	}

	code, derr := componentCode(desc.Name)
	if derr != nil {
		return nil, errAt(ErrUnexpectedTag, off, "array class %q: %v", desc.Name, derr)
	}
	arr.Values = make([]Value, 0, int(n))
	for i := 0; i < int(n); i++ {
		var v Value
		if isPrimitiveCode(code) {
			v, err = dec.readPrimitive(code)
		} else {
			v, err = dec.readContent()
		}
		if err != nil {
			return nil, err
		}
		arr.Values = append(arr.Values, v)
	}
	return arr, nil
}

func (dec *Decoder) readNewEnum(off int) (Value, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errAt(ErrUnexpectedTag, off, "enum constant with null class descriptor")
	}
	h := dec.handles.reserve()
	name, err := dec.readTypeString()
	if err != nil {
		return nil, err
	}
	e := &Enum{Class: desc, Constant: name}
	dec.handles.bind(h, e)
	return e, nil
}

func (dec *Decoder) readNewObject(off int) (Value, error) {
	desc, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errAt(ErrUnexpectedTag, off, "object with null class descriptor")
	}
	obj := &Object{Class: desc}
	// Bind the shell before reading any field so references to this
	// object from within its own fields resolve to it.
	h := dec.handles.reserve()
	dec.handles.bind(h, obj)

	for _, level := range desc.chain() {
		data, err := dec.readClassData(level)
		if err != nil {
			return nil, err
		}
		obj.Data = append(obj.Data, data)
	}
	return obj, nil
}

// readClassData decodes the serial data one hierarchy level contributes
// to an instance: its declared fields in declaration order, then its
// custom-written annotation region if the level has one.
func (dec *Decoder) readClassData(level *ClassDesc) (ClassData, error) {
	data := ClassData{Desc: level}
	switch {
	case level.Externalizable():
		if !level.HasBlockData() {
			// Protocol version 1 externalizable data has no length and
			// no terminator; it cannot be decoded without the class.
			return data, errAt(ErrUnexpectedTag, dec.cur.offset(), "externalizable class %s wrote unframed data", level.Name)
		}
		ann, err := dec.readAnnotation(dec.opts.CaptureBlockData)
		if err != nil {
			return data, err
		}
		data.Annotation = ann
	case level.Serializable():
		if len(level.Fields) > 0 {
			data.Fields = make(map[string]Value, len(level.Fields))
		}
		for _, field := range level.Fields {
			var (
				v   Value
				err error
			)
			if field.IsPrimitive() {
				v, err = dec.readPrimitive(field.TypeCode)
			} else {
				v, err = dec.readContent()
			}
			if err != nil {
				return data, err
			}
			data.Fields[field.Name] = v
		}
		if level.HasWriteMethod() {
			ann, err := dec.readAnnotation(dec.opts.CaptureBlockData)
			if err != nil {
				return data, err
			}
			data.Annotation = ann
		}
	}
	return data, nil
}

// readAnnotation walks a custom-serialized region up to its closing
// TC_ENDBLOCKDATA. Contents other than block data (objects written by a
// writeObject) are always fully decoded, whether captured or not: they
// allocate handles that later back-references may target.
func (dec *Decoder) readAnnotation(capture bool) ([]Value, error) {
	var items []Value
	for {
		tc, err := dec.cur.peekU8()
		if err != nil {
			return nil, errAt(ErrMissingTerminator, dec.cur.offset(), "annotation not closed before end of stream")
		}
		if tc == TcEndblockdata {
			_, _ = dec.cur.readU8()
			return items, nil
		}
		v, err := dec.readContent()
		if err != nil {
			return nil, err
		}
		if capture {
			items = append(items, v)
		}
	}
}

func (dec *Decoder) readPrimitive(code byte) (Value, error) {
	switch code {
	case 'B':
		v, err := dec.cur.readU8()
		return Byte(int8(v)), err
	case 'C':
		v, err := dec.cur.readU16()
		return Char(v), err
	case 'D':
		v, err := dec.cur.readF64()
		return Double(v), err
	case 'F':
		v, err := dec.cur.readF32()
		return Float(v), err
	case 'I':
		v, err := dec.cur.readI32()
		return Int(v), err
	case 'J':
		v, err := dec.cur.readI64()
		return Long(v), err
	case 'S':
		v, err := dec.cur.readI16()
		return Short(v), err
	case 'Z':
		v, err := dec.cur.readU8()
		return Bool(v != 0), err
	default:
		return nil, errAt(ErrUnexpectedTag, dec.cur.offset(), "invalid primitive type code: %#02x", code)
	}
}

// readAbort handles TC_EXCEPTION: the writer hit an error mid-object and
// recorded the throwable in-band. Per the protocol it reset the stream
// context around the throwable, so the handle table is cleared; the
// throwable itself is decoded best-effort to name it in the error.
func (dec *Decoder) readAbort(off int) error {
	dec.handles.reset()
	class := ""
	if v, err := dec.readContent(); err == nil {
		if o, ok := v.(*Object); ok && o.Class != nil {
			class = o.Class.Name
		}
	}
	dec.handles.reset()
	if class != "" {
		return errAt(ErrStreamAborted, off, "writer threw %s", class)
	}
	return errAt(ErrStreamAborted, off, "writer aborted mid-stream")
}

// componentCode extracts the element type code from an array class
// signature such as "[I", "[[Z" or "[Ljava.lang.String;".
func componentCode(signature string) (byte, error) {
	if len(signature) < 2 || signature[0] != '[' {
		return 0, fmt.Errorf("not an array signature")
	}
	c := signature[1]
	if !isPrimitiveCode(c) && !isObjectCode(c) {
		return 0, fmt.Errorf("invalid component type %q", c)
	}
	return c, nil
}
