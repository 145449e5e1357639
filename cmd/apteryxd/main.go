// Command apteryxd is the broker daemon: it binds the well-known broker
// socket, serves GET/SET/SEARCH/PRUNE/WATCH/PROVIDE, and exposes Prometheus
// metrics, in the structure of ap.configd's main().
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/broker"
	"github.com/isaac129/apteryx/common/aputil"
)

const pname = "apteryxd"

var (
	addr = flag.String("listen-address", base_def.BrokerPrometheusPort,
		"address to serve Prometheus metrics on")
	workers = flag.Int("workers", base_def.DefaultWorkers,
		"number of request-handling goroutines")
	debug = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	log := aputil.NewLogger(pname)
	if *debug {
		_ = aputil.LogSetLevel("debug")
	}

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(*addr, nil); err != nil {
			log.Errorw("metrics server exited", "error", err)
		}
	}()

	b := broker.New(broker.Config{
		Workers: *workers,
		Logger:  log,
	})
	if err := b.Start(); err != nil {
		log.Fatalw("failed to start broker", "error", err)
	}
	log.Infow("apteryxd started", "metrics_addr", *addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Infow("shutting down")
	b.Stop()
}
