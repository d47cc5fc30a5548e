package perfmon

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 15 * time.Second
	defaultDNSTimeout   = 800 * time.Millisecond

	// resolveThrottle limits how often an unforced DNS refresh may
	// hit the resolvers.
	resolveThrottle = time.Minute
)

// ExportConfig defines the Prometheus remote-write export settings.
type ExportConfig struct {
	// RemoteWriteURL is the remote-write endpoint.
	RemoteWriteURL string `yaml:"remote_write_url"`
	// WriteTimeout bounds a single write request.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Series naming and identification.
	Namespace    string            `yaml:"namespace"`
	Subsystem    string            `yaml:"subsystem"`
	ServiceName  string            `yaml:"service_name"`
	InstanceIP   string            `yaml:"instance_ip"`
	CustomLabels map[string]string `yaml:"custom_labels"`

	// DNS resolver options (optional, for endpoints behind churning
	// DNS records).
	DNSUDPServers []string      `yaml:"dns_udp_servers"` // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	DNSTimeout    time.Duration `yaml:"dns_timeout"`
}

// RemoteWriteExporter forwards snapshots to a Prometheus remote-write
// endpoint, one time series per snapshot field. It is a plain
// subscriber: attach it to a monitor and the notifier cadence drives
// the writes.
type RemoteWriteExporter struct {
	config ExportConfig
	logger *zap.Logger

	mu          sync.Mutex
	client      *promwrite.Client
	targetHost  string
	resolvedIPs []string
	lastResolve time.Time
}

// NewRemoteWriteExporter creates an exporter for the given endpoint.
func NewRemoteWriteExporter(config ExportConfig, logger *zap.Logger) (*RemoteWriteExporter, error) {
	if config.RemoteWriteURL == "" {
		return nil, fmt.Errorf("remote write URL cannot be empty")
	}
	if config.ServiceName == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	if config.InstanceIP == "" {
		ip, err := GetOutboundIPv4()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbound IPv4: %w", err)
		}
		config.InstanceIP = ip
	}

	var host string
	if u, err := url.Parse(config.RemoteWriteURL); err == nil {
		host = u.Hostname()
	}

	return &RemoteWriteExporter{
		config:     config,
		logger:     logger,
		client:     promwrite.NewClient(config.RemoteWriteURL),
		targetHost: host,
	}, nil
}

// Attach subscribes the exporter to a monitor and returns the
// subscriber id, so the caller can Unsubscribe it later.
func (e *RemoteWriteExporter) Attach(m Monitor) uint64 {
	return m.Subscribe(func(s Snapshot) {
		if err := e.Write(s); err != nil && e.logger != nil {
			e.logger.Error("failed to export snapshot", zap.Error(err))
		}
	})
}

// Write sends one snapshot to the remote endpoint. On failure it
// forces a DNS refresh once and retries when the refresh produced a
// new client.
func (e *RemoteWriteExporter) Write(s Snapshot) error {
	req := &promwrite.WriteRequest{
		TimeSeries: e.convertSnapshot(s),
	}
	timeout := pickDuration(e.config.WriteTimeout, defaultWriteTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_, err := e.clientRef().Write(ctx, req)
	cancel()
	if err == nil {
		return nil
	}

	if e.refreshDNS(true) {
		// The refresh may have eaten most of the first attempt's
		// budget, so the retry gets a full one.
		retryCtx, retryCancel := context.WithTimeout(context.Background(), timeout)
		defer retryCancel()
		if _, retryErr := e.clientRef().Write(retryCtx, req); retryErr != nil {
			return fmt.Errorf("writing time series failed after dns refresh: %w", retryErr)
		}
		return nil
	}
	return fmt.Errorf("writing time series failed: %w", err)
}

func (e *RemoteWriteExporter) clientRef() *promwrite.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client
}

// convertSnapshot flattens a snapshot into remote-write time series
// with the standard label set.
func (e *RemoteWriteExporter) convertSnapshot(s Snapshot) []promwrite.TimeSeries {
	points := []struct {
		name  string
		value float64
	}{
		{"ui_fps", float64(s.UIFPS)},
		{"js_fps", float64(s.JSFPS)},
		{"resident_memory_bytes", float64(s.ResidentMemoryBytes)},
		{"js_heap_used_bytes", float64(s.JSHeapUsedBytes)},
		{"js_heap_total_bytes", float64(s.JSHeapTotalBytes)},
		{"dropped_frames_total", float64(s.DroppedFrames)},
		{"stutter_total", float64(s.StutterCount)},
		{"long_task_total", float64(s.LongTaskCount)},
		{"long_task_ms_total", float64(s.LongTaskTotalMs)},
		{"slow_event_total", float64(s.SlowEventCount)},
		{"max_event_duration_ms", s.MaxEventDurationMs},
		{"render_total", float64(s.RenderCount)},
		{"last_render_duration_ms", s.LastRenderDurationMs},
	}

	prefix := fmt.Sprintf("%s_%s", e.config.Namespace, e.config.Subsystem)
	sampleTime := time.UnixMilli(s.TimestampMs)

	result := make([]promwrite.TimeSeries, 0, len(points))
	for _, p := range points {
		labels := make([]promwrite.Label, 0, 4+len(e.config.CustomLabels))
		labels = append(labels, []promwrite.Label{
			{Name: "__name__", Value: fmt.Sprintf("%s_%s", prefix, p.name)},
			{Name: "_instance_", Value: e.config.InstanceIP},
			{Name: "instance", Value: e.config.InstanceIP},
			{Name: "_target_", Value: e.config.ServiceName},
		}...)

		for k, v := range e.config.CustomLabels {
			labels = append(labels, promwrite.Label{Name: k, Value: v})
		}

		result = append(result, promwrite.TimeSeries{
			Labels: labels,
			Sample: promwrite.Sample{
				Time:  sampleTime,
				Value: p.value,
			},
		})
	}
	return result
}

// refreshDNS resolves the endpoint host and recreates the client when
// the IP set changed, forcing new connections. Returns whether a new
// client was installed. Resolution happens outside the lock so
// concurrent writes keep their client while a refresh is in flight.
func (e *RemoteWriteExporter) refreshDNS(force bool) bool {
	e.mu.Lock()
	if e.targetHost == "" || net.ParseIP(e.targetHost) != nil {
		e.mu.Unlock()
		return false
	}
	if !force && time.Since(e.lastResolve) < resolveThrottle {
		e.mu.Unlock()
		return false
	}
	e.lastResolve = time.Now()
	host := e.targetHost
	e.mu.Unlock()

	newSet, err := e.resolve(host)
	if err != nil || len(newSet) == 0 {
		if e.logger != nil {
			e.logger.Warn("DNS lookup failed",
				zap.String("host", host), zap.Error(err))
		}
		return false
	}

	e.mu.Lock()
	changed := !stringSlicesEqual(newSet, e.resolvedIPs)
	e.resolvedIPs = newSet
	installed := changed || force
	if installed {
		e.client = promwrite.NewClient(e.config.RemoteWriteURL)
	}
	e.mu.Unlock()

	if installed && e.logger != nil {
		e.logger.Info("refreshed remote write client after DNS update",
			zap.String("host", host), zap.Strings("ips", newSet))
	}
	return installed
}

// lookupHostIPs is swapped out in tests.
var lookupHostIPs = systemLookupIPs

func systemLookupIPs(ctx context.Context, host string) ([]string, error) {
	netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(netIPs))
	for _, ip := range netIPs {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

// resolve queries the configured UDP resolvers in order and falls
// back to the system resolver.
func (e *RemoteWriteExporter) resolve(host string) ([]string, error) {
	timeout := pickDuration(e.config.DNSTimeout, defaultDNSTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	for _, server := range e.config.DNSUDPServers {
		ips, err := resolveUDP(ctx, host, server, timeout)
		if err == nil && len(ips) > 0 {
			return ips, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	ips, err := lookupHostIPs(ctx, host)
	if err != nil {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, err
	}
	return ips, nil
}

func resolveUDP(ctx context.Context, host, server string, timeout time.Duration) ([]string, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := &dns.Client{Net: "udp", Timeout: timeout}
	r, _, err := c.ExchangeContext(ctx, q, server)
	if err != nil || r == nil || r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("udp dns failed: %v", err)
	}
	ips := make([]string, 0, len(r.Answer))
	for _, ans := range r.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetOutboundIPv4 gets the outbound IPv4 address of the local machine
func GetOutboundIPv4() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
