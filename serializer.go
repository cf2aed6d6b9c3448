package rpcdispatch

import "context"

// Serializer transforms values crossing the RPC boundary. The dispatcher
// calls DeserializeEntity on every argument value before invoking an
// endpoint method and SerializeEntity on the method's result before
// returning it. Implementations must not rely on being called in any
// particular order across arguments.
type Serializer interface {
	SerializeEntity(ctx context.Context, entity any) (any, error)
	DeserializeEntity(ctx context.Context, entity any) (any, error)
}

// NoOpSerializer passes entities through unchanged. It is the default when
// no serializer is configured.
type NoOpSerializer struct{}

// SerializeEntity returns entity unchanged.
func (NoOpSerializer) SerializeEntity(_ context.Context, entity any) (any, error) {
	return entity, nil
}

// DeserializeEntity returns entity unchanged.
func (NoOpSerializer) DeserializeEntity(_ context.Context, entity any) (any, error) {
	return entity, nil
}

// SerializerFuncs adapts a pair of functions to the Serializer interface.
// A nil function passes its entity through unchanged.
//
//	s := rpcdispatch.SerializerFuncs{
//	    Deserialize: func(ctx context.Context, v any) (any, error) {
//	        return decodeEntity(v)
//	    },
//	}
type SerializerFuncs struct {
	Serialize   func(ctx context.Context, entity any) (any, error)
	Deserialize func(ctx context.Context, entity any) (any, error)
}

// SerializeEntity implements Serializer.
func (f SerializerFuncs) SerializeEntity(ctx context.Context, entity any) (any, error) {
	if f.Serialize == nil {
		return entity, nil
	}
	return f.Serialize(ctx, entity)
}

// DeserializeEntity implements Serializer.
func (f SerializerFuncs) DeserializeEntity(ctx context.Context, entity any) (any, error) {
	if f.Deserialize == nil {
		return entity, nil
	}
	return f.Deserialize(ctx, entity)
}
