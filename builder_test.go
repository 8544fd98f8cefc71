package objectstream

import (
	"bytes"
	"encoding/binary"
)

// streamBuilder assembles byte fixtures following the writer-side
// grammar, so decoder tests read streams laid out exactly as
// ObjectOutputStream emits them.
type streamBuilder struct {
	buf bytes.Buffer
}

func newStreamBuilder() *streamBuilder {
	b := &streamBuilder{}
	return b.bin(StreamMagic, StreamVersion)
}

func (b *streamBuilder) bin(values ...interface{}) *streamBuilder {
	for _, value := range values {
		if err := binary.Write(&b.buf, binary.BigEndian, value); err != nil {
			panic(err)
		}
	}
	return b
}

func (b *streamBuilder) utf(s string) *streamBuilder {
	p := []byte(s)
	return b.bin(uint16(len(p)), p)
}

// ref emits a back-reference to the index-th handle of the session
// (index 0 is baseWireHandle).
func (b *streamBuilder) ref(index int32) *streamBuilder {
	return b.bin(TcReference, baseWireHandle+index)
}

func (b *streamBuilder) str(s string) *streamBuilder {
	return b.bin(TcString).utf(s)
}

type fieldSpec struct {
	code byte
	name string
	sig  string
}

// classDesc emits a TC_CLASSDESC body up to and including its empty
// annotation; the caller emits the superclass descriptor next.
func (b *streamBuilder) classDesc(name string, suid int64, flags byte, fields ...fieldSpec) *streamBuilder {
	b.bin(TcClassdesc).utf(name)
	b.bin(suid, flags, int16(len(fields)))
	for _, f := range fields {
		b.bin(f.code).utf(f.name)
		if isObjectCode(f.code) {
			b.str(f.sig)
		}
	}
	return b.bin(TcEndblockdata)
}

func (b *streamBuilder) bytes() []byte {
	return b.buf.Bytes()
}

// pointFixture encodes Point{x:3, y:4}. Handles: descriptor 0, object 1.
func pointFixture() []byte {
	return newStreamBuilder().
		bin(TcObject).
		classDesc("Point", 0x1234, ScSerializable,
			fieldSpec{code: 'I', name: "x"},
			fieldSpec{code: 'I', name: "y"}).
		bin(TcNull). // no superclass
		bin(int32(3), int32(4)).
		bytes()
}

// boxedIntegerFixture encodes java.lang.Integer(42) with its real
// two-level hierarchy. Handles: Integer desc 0, Number desc 1, object 2.
func boxedIntegerFixture() []byte {
	return newStreamBuilder().
		bin(TcObject).
		classDesc("java.lang.Integer", 1360826667806852920, ScSerializable,
			fieldSpec{code: 'I', name: "value"}).
		classDesc("java.lang.Number", -8742448824652078965, ScSerializable).
		bin(TcNull).
		bin(int32(42)).
		bytes()
}

// stringArrayFixture encodes the array ["a", "b"]. Handles: descriptor
// 0, array 1, "a" 2, "b" 3.
func stringArrayFixture() []byte {
	return newStreamBuilder().
		bin(TcArray).
		classDesc("[Ljava.lang.String;", -5921575005990323385, ScSerializable).
		bin(TcNull).
		bin(int32(2)).
		str("a").
		str("b").
		bytes()
}

// cycleFixture encodes an object whose single field references the
// object itself. Handles: descriptor 0, field signature 1, object 2.
func cycleFixture() []byte {
	return newStreamBuilder().
		bin(TcObject).
		classDesc("Node", 0x42, ScSerializable,
			fieldSpec{code: 'L', name: "self", sig: "LNode;"}).
		bin(TcNull).
		ref(2).
		bytes()
}
