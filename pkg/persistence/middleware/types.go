// Package middleware wraps a ports.RunStore with behaviour applied to every
// persisted snapshot, such as encryption at rest or masking of sensitive
// slot values.
package middleware

import "github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies mws so that the first one sees Save calls first.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
