package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pointme/pointme/libs/grpcx"
	"github.com/pointme/pointme/libs/runtime"
)

// healthprobe queries the gRPC health service of a running booking service
// and exits non-zero unless it reports SERVING. Suitable as a container probe.
func main() {
	var (
		addr    = flag.String("addr", runtime.Getenv("GRPC_ADDR", "localhost:9093"), "grpc address")
		service = flag.String("service", runtime.Getenv("SERVICE_NAME", "booking-service"), "health service name, empty for overall status")
		timeout = flag.Duration("timeout", 3*time.Second, "dial and check timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := grpcx.Check(ctx, conn, *service); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("SERVING")
}
