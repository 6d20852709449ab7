// Command engine-server exposes an in-process engine session over gRPC so
// that regions in other processes can drive it, with an optional debug HTTP
// listener for health, session inspection and the design ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/engine/bridge"
	"github.com/banshee-data/toporegion/internal/engine/memengine"
	"github.com/banshee-data/toporegion/internal/httputil"
	"github.com/banshee-data/toporegion/internal/monitoring"
	"github.com/banshee-data/toporegion/internal/storage/sqlite"
	"github.com/banshee-data/toporegion/internal/version"
)

var (
	listen          = flag.String("listen", "127.0.0.1:7070", "gRPC listen address")
	debugListen     = flag.String("debug-listen", "127.0.0.1:7071", "Debug HTTP listen address (empty disables)")
	frequencies     = flag.Int("frequencies", 1, "Frequency points reported by field and index monitors")
	backgroundIndex = flag.Float64("background-index", 1.0, "Refractive index outside imported geometry")
	dbPath          = flag.String("db", "", "Ledger database exposed on the debug listener (empty disables)")
	maxMessageMB    = flag.Int("max-message-mb", bridge.DefaultMaxMessageSize>>20, "Largest gRPC request or reply in MiB")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

var logf = monitoring.Prefixed("engine-server")

// callCounter tallies gRPC calls by full method name.
type callCounter struct {
	mu     sync.Mutex
	counts map[string]int
	total  atomic.Int64
}

func newCallCounter() *callCounter {
	return &callCounter{counts: make(map[string]int)}
}

// interceptor logs every call with its latency and records it.
func (c *callCounter) interceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	c.mu.Lock()
	c.counts[info.FullMethod]++
	c.mu.Unlock()
	c.total.Add(1)
	if err != nil {
		logf("%s failed after %s: %v", info.FullMethod, time.Since(start), err)
	}
	return resp, err
}

func (c *callCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// newGRPCServer builds the engine gRPC server with message limits of
// maxBytes and the call counter installed.
func newGRPCServer(maxBytes int, calls *callCounter) *grpc.Server {
	opts := append(bridge.ServerOptions(maxBytes), grpc.UnaryInterceptor(calls.interceptor))
	return grpc.NewServer(opts...)
}

// newDebugMux serves /healthz, /session and /session/var. With a store it
// also mounts the ledger admin routes under /debug/.
func newDebugMux(sess *memengine.Session, calls *callCounter, store *sqlite.Store) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		httputil.WriteJSONOK(w, sessionState{
			Version:    version.Version,
			Objects:    sess.Objects(),
			Transcript: sess.Transcript(),
			Calls:      calls.snapshot(),
			TotalCalls: calls.total.Load(),
		})
	})
	mux.HandleFunc("/session/var", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			httputil.WriteJSONError(w, http.StatusBadRequest, "missing name")
			return
		}
		v, err := sess.GetV(r.Context(), name)
		if err != nil {
			httputil.WriteEngineError(w, err)
			return
		}
		httputil.WriteJSONOK(w, v)
	})
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// sessionState is the /session response body.
type sessionState struct {
	Version    string          `json:"version"`
	Objects    []engine.Handle `json:"objects"`
	Transcript []string        `json:"transcript"`
	Calls      map[string]int  `json:"calls"`
	TotalCalls int64           `json:"total_calls"`
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("engine-server"))
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *maxMessageMB < 1 {
		log.Fatalf("-max-message-mb must be at least 1, got %d", *maxMessageMB)
	}

	sess := memengine.New(memengine.Config{
		Frequencies:     *frequencies,
		BackgroundIndex: *backgroundIndex,
	})
	calls := newCallCounter()

	var store *sqlite.Store
	if *dbPath != "" {
		var err error
		store, err = sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open ledger: %v", err)
		}
		defer store.Close()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *listen, err)
	}
	srv := newGRPCServer(*maxMessageMB<<20, calls)
	bridge.NewServer(sess).Register(srv)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logf("serving %s on %s", bridge.ServiceName, lis.Addr())
		if err := srv.Serve(lis); err != nil {
			logf("gRPC server stopped: %v", err)
		}
	}()

	if *debugListen != "" {
		mux, err := newDebugMux(sess, calls, store)
		if err != nil {
			log.Fatalf("failed to build debug routes: %v", err)
		}
		server := &http.Server{Addr: *debugListen, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start debug server: %v", err)
				}
			}()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logf("debug server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					logf("debug server force close error: %v", err)
				}
			}
		}()
	}

	<-ctx.Done()
	logf("shutting down")
	srv.GracefulStop()
	wg.Wait()
	logf("graceful shutdown complete")
}
