package fimfic2cover

import (
	"context"
	"net"
	"net/http"
	"time"
)

// DefaultServeAddr is where the cover image is served so fimfic2epub can
// fetch it. All interfaces, fixed port.
const DefaultServeAddr = "0.0.0.0:8000"

// FileServer serves a single directory over HTTP for the lifetime of one
// converter run. The listener is bound before ServeDir returns, so the
// endpoint is ready as soon as the caller has a handle.
type FileServer struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// ServeDir starts serving dir on addr. An empty addr uses DefaultServeAddr.
func ServeDir(dir, addr string) (*FileServer, error) {
	if addr == "" {
		addr = DefaultServeAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &FileServer{
		srv:  &http.Server{Handler: http.FileServer(http.Dir(dir))},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		_ = s.srv.Serve(ln)
	}()
	return s, nil
}

// Addr reports the bound address, which differs from the requested one when
// the caller asked for port 0.
func (s *FileServer) Addr() net.Addr { return s.ln.Addr() }

// Close shuts the server down and waits for the accept loop to exit. Safe to
// defer; runs on every exit path of a run.
func (s *FileServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
