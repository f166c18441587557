// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify keeps an origin's push-notification device registration in
step with its session.

A [Registrar] subscribes to one machine. Subscribers only fire when the
authenticated flag or the principal changes, so loading toggles never cause
a registration call. Calls run on the registrar's own goroutine, in the
order the changes happened.

Observing a change never blocks the machine: changes are appended to a
queue, and when a slow endpoint lets it grow past queueSize the oldest
entries are dropped. The newest entry always survives, so the device ends
up registered for the latest session.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/washpass/internal/session"
)

const (
	requestTimeout = 10 * time.Second
	queueSize      = 8
)

type deviceRegistration struct {
	DeviceID    string `json:"device_id"`
	Domain      string `json:"domain"`
	PrincipalID int64  `json:"principal_id"`
	Role        string `json:"role"`
}

// Registrar registers one device for the principal of one machine.
type Registrar struct {
	endpoint string
	device   string
	domain   string
	client   *http.Client
	logger   *slog.Logger

	mu          sync.Mutex
	ready       *sync.Cond
	stopped     bool
	queue       []session.Snapshot
	done        chan struct{}
	unsubscribe func()
}

// Attach starts a registrar for machine. Requests go through the machine's
// authorized transport, so a 401 from the endpoint also ends the session.
func Attach(machine *session.Machine, endpoint, device string, logger *slog.Logger) *Registrar {
	client := session.NewTransport(machine, nil).Client()
	client.Timeout = requestTimeout

	r := &Registrar{
		endpoint: strings.TrimRight(endpoint, "/"),
		device:   device,
		domain:   machine.Domain().Name,
		client:   client,
		logger:   logger.With(slog.String("domain", machine.Domain().Name)),
		done:     make(chan struct{}),
	}
	r.ready = sync.NewCond(&r.mu)

	go r.run()
	r.unsubscribe = machine.Subscribe(r.observe)
	return r
}

// Stop detaches from the machine and waits for queued calls to finish.
func (r *Registrar) Stop() {
	r.unsubscribe()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.ready.Broadcast()
	r.mu.Unlock()

	<-r.done
}

func (r *Registrar) observe(snapshot session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	r.queue = append(r.queue, snapshot)
	if dropped := len(r.queue) - queueSize; dropped > 0 {
		r.logger.Warn("notify_queue_overflow", slog.Int("dropped", dropped))
		r.queue = append(r.queue[:0], r.queue[dropped:]...)
	}
	r.ready.Signal()
}

// next blocks until a change is queued. It reports false once the registrar
// is stopped and the queue is drained.
func (r *Registrar) next() (session.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.queue) == 0 && !r.stopped {
		r.ready.Wait()
	}
	if len(r.queue) == 0 {
		return session.Snapshot{}, false
	}

	snapshot := r.queue[0]
	r.queue = r.queue[1:]
	return snapshot, true
}

func (r *Registrar) run() {
	defer close(r.done)

	for {
		snapshot, ok := r.next()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)

		var err error
		if snapshot.Authenticated && snapshot.Principal != nil {
			err = r.register(ctx, *snapshot.Principal, snapshot.Token)
		} else {
			err = r.unregister(ctx)
		}
		cancel()

		if err != nil {
			r.logger.Warn("notify_registration_failed",
				slog.Bool("authenticated", snapshot.Authenticated),
				slog.Any("error", err),
			)
		}
	}
}

func (r *Registrar) register(ctx context.Context, principal session.Principal, token string) error {
	body, err := json.Marshal(deviceRegistration{
		DeviceID:    r.device,
		Domain:      r.domain,
		PrincipalID: principal.ID,
		Role:        string(principal.Role),
	})
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.endpoint+"/devices", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return r.do(req)
}

func (r *Registrar) unregister(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.endpoint+"/devices/"+url.PathEscape(r.device), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return r.do(req)
}

func (r *Registrar) do(req *http.Request) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifications endpoint answered %d", resp.StatusCode)
	}
	return nil
}
