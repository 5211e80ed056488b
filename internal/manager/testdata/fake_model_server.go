package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// A stand-in for a model scoring server: POST /invocations with a
// split-orient body, answers one prediction per row.
func main() {
	var host, port, mode string
	flag.StringVar(&host, "h", "127.0.0.1", "host")
	flag.StringVar(&port, "p", "0", "port")
	flag.StringVar(&mode, "mode", "ok", "ok|error|delay")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/invocations", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Columns []string `json:"columns"`
			Data    [][]any  `json:"data"`
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || mode == "error" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_code":"BAD_REQUEST","error_message":"invalid input"}`))
			return
		}
		out := make([]float64, len(req.Data))
		for i := range out {
			out[i] = float64(len(req.Columns))
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	if mode == "delay" {
		time.Sleep(300 * time.Millisecond)
	}
	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
