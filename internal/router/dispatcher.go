package router

import "context"

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Dispatcher

// Dispatcher performs the network call to a provider. The router only looks
// at the result shape; protocol details stay behind this interface.
type Dispatcher interface {
	Call(ctx context.Context, providerID string, req Request) Result
}
