package oauth2client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// listenerShutdownTimeout bounds how long Stop waits for an in-flight
// callback response to finish before force-closing the connection.
const listenerShutdownTimeout = 5 * time.Second

// CallbackResult carries the query parameters of one authorization redirect.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError reports whether the authorization server returned an error
// response instead of a code.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackListener accepts a single authorization redirect on a local port.
//
// The listener binds the exact address it is given, answers exactly one GET
// request on any path, and delivers the parsed query parameters to Wait.
// Further requests after the first are answered with 400 and ignored. Start
// and Stop are safe to call from different goroutines; Stop returns only
// after the bound socket is closed.
type CallbackListener struct {
	addr string

	server   *http.Server
	listener net.Listener

	resultCh chan *CallbackResult
	errCh    chan error

	handleOnce sync.Once
	stopOnce   sync.Once

	logger Logger
}

// NewCallbackListener creates a listener for the given address
// (host:port). The port must be explicit; the listener does not choose one.
func NewCallbackListener(addr string, logger Logger) *CallbackListener {
	return &CallbackListener{
		addr:     addr,
		resultCh: make(chan *CallbackResult, 1),
		errCh:    make(chan error, 1),
		logger:   logger,
	}
}

// Start binds the address and begins serving on a dedicated goroutine.
// The sandbox blocks IPv6 listeners, so the socket is forced to IPv4.
func (l *CallbackListener) Start() error {
	listener, err := net.Listen("tcp4", l.addr)
	if err != nil {
		return fmt.Errorf("oauth2client: failed to bind callback listener on %s: %w", l.addr, err)
	}
	l.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleCallback)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case l.errCh <- fmt.Errorf("oauth2client: callback listener failed: %w", err):
			default:
			}
		}
	}()

	if l.logger != nil {
		l.logger.Printf("oauth2client: callback listener started on %s", listener.Addr())
	}

	return nil
}

// Wait blocks until the first redirect arrives, the listener fails, or ctx
// is done. It does not stop the listener.
func (l *CallbackListener) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-l.resultCh:
		return result, nil
	case err := <-l.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts the listener down and releases the bound port. It is
// idempotent and returns only once the socket is closed.
func (l *CallbackListener) Stop() {
	l.stopOnce.Do(func() {
		if l.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), listenerShutdownTimeout)
			defer cancel()
			if err := l.server.Shutdown(ctx); err != nil {
				l.server.Close()
			}
		}
		if l.listener != nil {
			l.listener.Close()
		}
		if l.logger != nil {
			l.logger.Printf("oauth2client: callback listener on %s stopped", l.addr)
		}
	})
}

// Addr returns the bound address. Valid after Start.
func (l *CallbackListener) Addr() string {
	if l.listener == nil {
		return l.addr
	}
	return l.listener.Addr().String()
}

// handleCallback consumes the first GET request and parses its query
// parameters. The redirect path is deliberately not validated: any GET to
// the bound port completes the wait.
func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	handled := false
	l.handleOnce.Do(func() {
		handled = true

		query := r.URL.Query()
		result := &CallbackResult{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Authorization response received. You can close this window.")

		l.resultCh <- result
	})

	if !handled {
		http.Error(w, "callback already processed", http.StatusBadRequest)
	}
}
