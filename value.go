package objectstream

// Value is a decoded stream entity. Concrete types:
//
//   - Null
//   - Bool, Byte, Char, Short, Int, Long, Float, Double (Java primitives,
//     width and signedness preserved)
//   - String
//   - *Array
//   - *Object
//   - *Enum
//   - *Class
//   - BlockData
//
// Objects, arrays, enums and classes are pointers so that back-references
// and cycles in the stream decode to identity-shared values.
type Value interface {
	streamValue()
}

// Null is a null reference (TC_NULL).
type Null struct{}

type (
	// Bool is a Java boolean.
	Bool bool
	// Byte is a Java byte (signed 8-bit).
	Byte int8
	// Char is a Java char (UTF-16 code unit).
	Char uint16
	// Short is a Java short.
	Short int16
	// Int is a Java int.
	Int int32
	// Long is a Java long.
	Long int64
	// Float is a Java float.
	Float float32
	// Double is a Java double.
	Double float64
	// String is a Java string (TC_STRING / TC_LONGSTRING).
	String string
)

// Array is a decoded Java array. Signature is the array class name from
// its descriptor, e.g. "[I" or "[Ljava.lang.String;".
type Array struct {
	Signature string
	Values    []Value
}

// ClassData holds the decoded state of one level of an object's class
// hierarchy: the declared field values, and, when the level wrote custom
// data, its captured annotation region.
type ClassData struct {
	Desc   *ClassDesc
	Fields map[string]Value
	// Annotation holds the level's custom-written region (BlockData
	// segments and nested values) when capture is enabled; nil when the
	// level wrote none or capture is off.
	Annotation []Value
}

// Object is a decoded ordinary object. Data runs from the root superclass
// to the most-derived class, mirroring the order serial data appears in
// the stream.
type Object struct {
	Class *ClassDesc
	Data  []ClassData
}

// Field returns the value of the named field, searching the most-derived
// class level first.
func (o *Object) Field(name string) (Value, bool) {
	for i := len(o.Data) - 1; i >= 0; i-- {
		if v, ok := o.Data[i].Fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Enum is a decoded enum constant.
type Enum struct {
	Class    *ClassDesc
	Constant string
}

// Class is a class used as a value (TC_CLASS), or a descriptor appearing
// on its own as top-level content.
type Class struct {
	Desc *ClassDesc
}

// BlockData is an opaque run of bytes the producer wrote outside the
// declared field grammar. The decoder knows its extent but not its
// meaning.
type BlockData []byte

func (Null) streamValue()      {}
func (Bool) streamValue()      {}
func (Byte) streamValue()      {}
func (Char) streamValue()      {}
func (Short) streamValue()     {}
func (Int) streamValue()       {}
func (Long) streamValue()      {}
func (Float) streamValue()     {}
func (Double) streamValue()    {}
func (String) streamValue()    {}
func (*Array) streamValue()    {}
func (*Object) streamValue()   {}
func (*Enum) streamValue()     {}
func (*Class) streamValue()    {}
func (BlockData) streamValue() {}
