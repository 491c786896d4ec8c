package api

import (
	"context"

	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/status"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewHealthServer returns a health server reporting the daemon as serving
// and the relay service as serving only while the session is running.
func NewHealthServer(initial status.State) *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, servingStatus(initial))
	return hs
}

// ReportHealth mirrors published session states into hs until ctx is done.
// It subscribes before returning, so no later state is missed.
func ReportHealth(ctx context.Context, hs *health.Server, b *bus.Bus) {
	ch, unsub := b.Subscribe(bus.KindStatus, 16)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if snap, ok := evt.Payload.(status.Snapshot); ok {
					hs.SetServingStatus(ServiceName, servingStatus(snap.Status))
				}
			case <-ctx.Done():
				hs.Shutdown()
				return
			}
		}
	}()
}

func servingStatus(s status.State) healthpb.HealthCheckResponse_ServingStatus {
	if s == status.Running {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
