// Package main implements blockattach-agent: the process a compute node
// runs to expose this component's Prometheus metrics. It does not build a
// connectors.Registry. It is deliberately not a CSI or gRPC server — the
// compute scheduler embeds this module and calls Registry.Connect /
// Registry.Disconnect as a library call, in-process, the same way Nova's
// libvirt driver calls its volume drivers directly. This binary's only
// job is process lifecycle: load configuration, serve /metrics, wait.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/config"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath  = flag.String("config", "", "path to a YAML config file overlaying the compiled-in defaults")
	metricsAddr = flag.String("metrics-addr", ":9090", "address to expose Prometheus metrics on")
	showVersion = flag.Bool("show-version", false, "show version and exit")
	debug       = flag.Bool("debug", false, "enable debug logging (equivalent to -v=4)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *debug || os.Getenv("DEBUG_BLOCKATTACH") == "true" {
		if err := flag.Set("v", "4"); err != nil {
			klog.Warningf("failed to set verbosity level: %v", err)
		}
	}

	if *showVersion {
		fmt.Printf("blockattach-agent version: %s\n", version)
		fmt.Printf("  Git commit: %s\n", gitCommit)
		fmt.Printf("  Build date: %s\n", buildDate)
		fmt.Printf("  Go version: %s\n", runtime.Version())
		fmt.Printf("  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			klog.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	klog.Infof("blockattach-agent %s (commit %s, built %s) starting with config: %+v", version, gitCommit, buildDate, cfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              *metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		klog.Infof("serving metrics on %s", *metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("metrics server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Warningf("metrics server shutdown: %v", err)
	}
}
