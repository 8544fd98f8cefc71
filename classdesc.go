package objectstream

// ClassDesc is a class descriptor reconstructed from the stream itself;
// no external class definition is consulted. Descriptors are shared:
// several objects (and the descriptor's own subclasses) may reference
// one descriptor through its handle.
type ClassDesc struct {
	Name             string
	SerialVersionUID int64
	Flags            byte
	Fields           []FieldDesc
	// Interfaces is non-nil for dynamic proxy descriptors, which carry
	// an interface list instead of a name and field specs.
	Interfaces []string
	Super      *ClassDesc
}

// FieldDesc describes one declared field. Type holds the signature
// string for object and array fields and is empty for primitives.
type FieldDesc struct {
	TypeCode byte
	Name     string
	Type     string
}

func (f FieldDesc) IsPrimitive() bool { return isPrimitiveCode(f.TypeCode) }

func (d *ClassDesc) Serializable() bool   { return d.Flags&ScSerializable != 0 }
func (d *ClassDesc) Externalizable() bool { return d.Flags&ScExternalizable != 0 }
func (d *ClassDesc) IsEnum() bool         { return d.Flags&ScEnum != 0 }
func (d *ClassDesc) IsProxy() bool        { return d.Interfaces != nil }

// HasWriteMethod reports whether instances of this level carry a custom
// writeObject region after their declared fields.
func (d *ClassDesc) HasWriteMethod() bool {
	return d.Serializable() && d.Flags&ScWriteMethod != 0
}

// HasBlockData reports whether an externalizable level wrote its data in
// block data mode (protocol version 2).
func (d *ClassDesc) HasBlockData() bool {
	return d.Externalizable() && d.Flags&ScBlockData != 0
}

// chain returns the descriptor hierarchy from the root superclass down
// to d, the order serial data is laid out in the stream.
func (d *ClassDesc) chain() []*ClassDesc {
	var out []*ClassDesc
	for c := d; c != nil; c = c.Super {
		out = append(out, c)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// readClassDesc decodes a class descriptor at the current position:
// a fresh descriptor, a proxy descriptor, a back-reference, or null
// (terminating a superclass chain). Superclass chains recurse through
// here, so the descriptor walk shares the content depth guard.
func (dec *Decoder) readClassDesc() (*ClassDesc, error) {
	if dec.depth >= dec.opts.MaxDepth {
		return nil, errAt(ErrNestingTooDeep, dec.cur.offset(), "recursion limit %d reached", dec.opts.MaxDepth)
	}
	dec.depth++
	defer func() { dec.depth-- }()

	off := dec.cur.offset()
	tc, err := dec.cur.readU8()
	if err != nil {
		return nil, err
	}
	switch tc {
	case TcNull:
		return nil, nil
	case TcReference:
		v, err := dec.readReference()
		if err != nil {
			return nil, err
		}
		switch ref := v.(type) {
		case *Class:
			return ref.Desc, nil
		default:
			return nil, errAt(ErrUnexpectedTag, off, "reference does not resolve to a class descriptor")
		}
	case TcClassdesc:
		return dec.readNonProxyDesc()
	case TcProxyclassdesc:
		return dec.readProxyDesc()
	default:
		return nil, errAt(ErrUnexpectedTag, off, "invalid type code for class descriptor: %#02x", tc)
	}
}

// readNonProxyDesc decodes the body of a TC_CLASSDESC. The descriptor is
// registered in the handle table as soon as its name and version are
// known, before its field list and superclass, so a field type may
// (indirectly) reference the descriptor still being decoded.
func (dec *Decoder) readNonProxyDesc() (*ClassDesc, error) {
	name, err := dec.cur.readUTF()
	if err != nil {
		return nil, err
	}
	suid, err := dec.cur.readI64()
	if err != nil {
		return nil, err
	}
	desc := &ClassDesc{Name: name, SerialVersionUID: suid}
	h := dec.handles.reserve()
	dec.handles.bind(h, &Class{Desc: desc})

	flags, err := dec.cur.readU8()
	if err != nil {
		return nil, err
	}
	desc.Flags = flags

	numFields, err := dec.cur.readI16()
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDesc, 0, int(numFields))
	for i := 0; i < int(numFields); i++ {
		field, err := dec.readFieldDesc()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	desc.Fields = fields

	if err := dec.skipClassAnnotation(); err != nil {
		return nil, err
	}

	super, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	desc.Super = super
	return desc, nil
}

// readProxyDesc decodes the body of a TC_PROXYCLASSDESC: a count of
// interface names, the annotation, and the superclass. Proxy classes
// declare no fields of their own.
func (dec *Decoder) readProxyDesc() (*ClassDesc, error) {
	desc := &ClassDesc{Interfaces: []string{}}
	h := dec.handles.reserve()
	dec.handles.bind(h, &Class{Desc: desc})

	off := dec.cur.offset()
	count, err := dec.cur.readI32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errAt(ErrUnexpectedTag, off, "negative proxy interface count %d", count)
	}
	for i := 0; i < int(count); i++ {
		iface, err := dec.cur.readUTF()
		if err != nil {
			return nil, err
		}
		desc.Interfaces = append(desc.Interfaces, iface)
	}

	if err := dec.skipClassAnnotation(); err != nil {
		return nil, err
	}

	super, err := dec.readClassDesc()
	if err != nil {
		return nil, err
	}
	desc.Super = super
	return desc, nil
}

func (dec *Decoder) readFieldDesc() (FieldDesc, error) {
	off := dec.cur.offset()
	tcode, err := dec.cur.readU8()
	if err != nil {
		return FieldDesc{}, err
	}
	if !isPrimitiveCode(tcode) && !isObjectCode(tcode) {
		return FieldDesc{}, errAt(ErrUnexpectedTag, off, "invalid field type code: %#02x", tcode)
	}
	name, err := dec.cur.readUTF()
	if err != nil {
		return FieldDesc{}, err
	}
	field := FieldDesc{TypeCode: tcode, Name: name}
	if isObjectCode(tcode) {
		// The signature is a string content record, so it may be a
		// back-reference to a signature seen earlier.
		sig, err := dec.readTypeString()
		if err != nil {
			return FieldDesc{}, err
		}
		field.Type = sig
	}
	return field, nil
}

// skipClassAnnotation consumes a class annotation region: arbitrary
// content records up to the closing TC_ENDBLOCKDATA. Nothing in the
// region affects the descriptor; it is decoded only to keep the cursor
// and handle table consistent.
func (dec *Decoder) skipClassAnnotation() error {
	_, err := dec.readAnnotation(false)
	return err
}
