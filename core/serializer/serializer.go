// Package serializer declares the §6 MessageSerializer contract. Go has no
// parameterized methods, so the generic serialize<T>/deserialize<T> shape
// from the spec becomes a plain []byte<->any interface plus the package-level
// helpers DeserializeAs, which recovers the typed round trip with a type
// parameter on the free function instead of the method.
package serializer

import "errors"

// ErrMessageTooLarge is the error a Serializer implementation returns when it
// enforces a size limit on an encoded or decoded payload; the Serializer
// interface itself has no size setting.
var ErrMessageTooLarge = errors.New("serializer: message exceeds max size")

// Serializer converts message payloads to and from wire bytes. Concrete
// implementations (JSON, MessagePack, Protobuf) are out of scope for this
// module — it is a capability interface other components depend on, not a
// concrete codec this module ships.
type Serializer interface {
	// Serialize encodes v to bytes.
	Serialize(v any) ([]byte, error)

	// Deserialize decodes data into v, which must be a pointer.
	Deserialize(data []byte, v any) error
}

// DeserializeAs decodes data using s and returns it as a T, working around
// Go's lack of generic interface methods.
func DeserializeAs[T any](s Serializer, data []byte) (T, error) {
	var v T
	err := s.Deserialize(data, &v)
	return v, err
}
