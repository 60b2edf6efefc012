package proxy

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brandpulse/backend/pkg/config"
	"github.com/brandpulse/backend/pkg/logger"
)

// Endpoint is one egress point in the pool.
type Endpoint struct {
	Host string
	Port string
}

// Addr is the host:port form used for browser proxy flags.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%s", e.Host, e.Port)
}

// URL is the authenticated proxy URL for HTTP clients.
func (e Endpoint) URL(username, password string) string {
	if username == "" {
		return "http://" + e.Addr()
	}
	return fmt.Sprintf("http://user-%s:%s@%s", username, password, e.Addr())
}

// Selector picks an egress endpoint per session to distribute request origin.
// The pool is read-only configuration, safe for concurrent use.
type Selector struct {
	username  string
	password  string
	endpoints []Endpoint
	echoURL   string
	client    *http.Client
}

func NewSelector(cfg config.ProxyConfig) *Selector {
	var endpoints []Endpoint
	for _, port := range strings.Split(cfg.Ports, ",") {
		port = strings.TrimSpace(port)
		if port == "" {
			continue
		}
		endpoints = append(endpoints, Endpoint{Host: cfg.Host, Port: port})
	}

	if len(endpoints) == 0 {
		logger.Warn("No proxy endpoints configured")
	} else {
		logger.Info("Proxy pool loaded", zap.Int("endpoints", len(endpoints)))
	}

	return &Selector{
		username:  cfg.Username,
		password:  cfg.Password,
		endpoints: endpoints,
		echoURL:   cfg.EchoURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Select returns a uniformly random endpoint. Independent per call; no
// round-robin guarantee is made or needed.
func (s *Selector) Select() (Endpoint, error) {
	if len(s.endpoints) == 0 {
		return Endpoint{}, fmt.Errorf("proxy pool is empty")
	}
	return s.endpoints[rand.Intn(len(s.endpoints))], nil
}

// Verify probes the echo service through the endpoint so a dead egress point
// fails here instead of burning a full browser launch.
func (s *Selector) Verify(ctx context.Context, ep Endpoint) error {
	proxyURL, err := url.Parse(ep.URL(s.username, s.password))
	if err != nil {
		return fmt.Errorf("invalid proxy url: %w", err)
	}

	client := &http.Client{
		Timeout:   s.client.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.echoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("proxy probe failed for %s: %w", ep.Addr(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy probe for %s returned status %d", ep.Addr(), resp.StatusCode)
	}

	logger.Debug("Proxy verified", zap.String("endpoint", ep.Addr()))
	return nil
}

// Size reports the pool size.
func (s *Selector) Size() int {
	return len(s.endpoints)
}
