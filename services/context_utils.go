package services

import "context"

// persistentContext keeps request values but drops cancellation, so a client
// that disconnects mid-submit does not abort a half-finished remote write.
// Each remote call is still bounded by its own timeout.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
