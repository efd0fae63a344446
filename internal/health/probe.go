package health

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Status is the probed state of one service.
type Status struct {
	Service string
	Serving bool
	// Detail is the raw status name, or "UNKNOWN_SERVICE" when the server
	// does not know the service.
	Detail string
}

// Probe asks the health server at addr for the status of each service. The
// empty service name is the overall status. Extra dial options are appended
// after the insecure transport credentials.
func Probe(ctx context.Context, addr string, services []string, opts ...grpc.DialOption) ([]Status, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	out := make([]Status, 0, len(services))
	for _, svc := range services {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if status.Code(err) == codes.NotFound {
			out = append(out, Status{Service: svc, Detail: "UNKNOWN_SERVICE"})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("checking %q: %w", svc, err)
		}
		out = append(out, Status{
			Service: svc,
			Serving: resp.GetStatus() == healthpb.HealthCheckResponse_SERVING,
			Detail:  resp.GetStatus().String(),
		})
	}
	return out, nil
}
