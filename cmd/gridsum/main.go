// Package main provides the gridsum CLI: the matrix addition service
// and a device sanity probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gridsum-dev/gridsum/internal/engine"
	"github.com/gridsum-dev/gridsum/internal/engine/cpu"
	"github.com/gridsum-dev/gridsum/internal/engine/webgpu"
	"github.com/gridsum-dev/gridsum/internal/matrix"
	"github.com/gridsum-dev/gridsum/internal/service"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	case "probe":
		if err := runProbe(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
	case "version":
		fmt.Printf("gridsum %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("gridsum - GPU matrix addition service")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Run the HTTP service")
	fmt.Println("  probe      Check accelerator availability and run a small addition")
	fmt.Println("  version    Show version")
}

// buildOrchestrator wires the accelerator backend with the host
// fallback. With forceCPU, or when no accelerator is usable, the host
// backend serves directly.
func buildOrchestrator(adapterIndex int, syncTimeout time.Duration, forceCPU bool, logger *log.Logger) (*engine.Orchestrator, engine.Backend) {
	opts := engine.Options{SyncTimeout: syncTimeout}
	host := cpu.New()

	if forceCPU {
		logger.Printf("accelerator disabled, running on %s", host.Name())
		return engine.NewOrchestrator(host, nil, opts, logger), host
	}

	gpuOpts := webgpu.DefaultOptions()
	gpuOpts.AdapterIndex = adapterIndex
	gpu, err := webgpu.New(gpuOpts)
	if err != nil {
		logger.Printf("accelerator unavailable (%v), running on %s", err, host.Name())
		return engine.NewOrchestrator(host, nil, opts, logger), host
	}

	logger.Printf("using %s with host fallback", gpu.Name())
	return engine.NewOrchestrator(gpu, host, opts, logger), gpu
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8020", "listen address")
	adapterIndex := fs.Int("adapter", -1, "adapter index, -1 for automatic selection")
	syncTimeout := fs.Duration("sync-timeout", 30*time.Second, "deadline for the kernel synchronization wait")
	forceCPU := fs.Bool("force-cpu", false, "skip the accelerator and run on the host")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.New(os.Stderr, "gridsum: ", log.LstdFlags)
	orch, device := buildOrchestrator(*adapterIndex, *syncTimeout, *forceCPU, logger)

	srv := service.New(orch, device, logger)
	logger.Printf("listening on %s", *addr)
	logger.Printf("endpoints: GET /health, POST /add, GET /device-info")
	return http.ListenAndServe(*addr, srv.Handler())
}

// runProbe is a device sanity check: it reports adapter availability
// and verifies a small addition end to end.
func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	adapterIndex := fs.Int("adapter", -1, "adapter index, -1 for automatic selection")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Printf("WebGPU available: %v\n", webgpu.IsAvailable())

	logger := log.New(os.Stderr, "gridsum: ", log.LstdFlags)
	orch, device := buildOrchestrator(*adapterIndex, 10*time.Second, false, logger)
	fmt.Printf("device: %s\n", device.Name())

	rows, cols := 64, 64
	a, err := matrix.New(rows, cols)
	if err != nil {
		return err
	}
	b, err := matrix.New(rows, cols)
	if err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, float32(i))
			b.Set(i, j, float32(j))
		}
	}

	res, err := orch.Execute(context.Background(), a, b)
	if err != nil {
		return fmt.Errorf("probe addition failed: %w", err)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if res.Matrix.At(i, j) != float32(i+j) {
				return fmt.Errorf("probe addition produced wrong value at (%d,%d): got %v, want %v",
					i, j, res.Matrix.At(i, j), float32(i+j))
			}
		}
	}

	fmt.Printf("added %s on %s in %.6fs\n", res.Matrix.ShapeString(), res.Device, res.Seconds())
	fmt.Println("probe OK")
	return nil
}
