package cli

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/obfs2relay/obfs2relay/internal/config"
)

// healthCheckTimeout bounds how long a health check waits for a response,
// so a transient stall doesn't flip a container to unhealthy.
const healthCheckTimeout = 5 * time.Second

// Health checks whether a running relay is healthy: via its Prometheus
// metrics endpoint if one is configured, falling back to a plain TCP
// connect to the relay port otherwise. Meant for a Dockerfile HEALTHCHECK.
type Health struct {
	ConfigPath string `kong:"arg,required,type='existingfile',help='Path to config file.',name='config-path'"` //nolint: lll
}

func (h Health) Run(cli *CLI) error {
	conf, err := config.Read(h.ConfigPath)
	if err != nil {
		return fmt.Errorf("cannot parse config: %w", err)
	}

	if conf.Prometheus.Enabled {
		bindTo := conf.Prometheus.BindTo.Get("0.0.0.0:9401")

		_, port, _ := net.SplitHostPort(bindTo)
		if port == "" {
			port = "9401"
		}

		return checkHTTP(fmt.Sprintf("http://127.0.0.1:%s/metrics", port))
	}

	bindTo := conf.BindTo.Get("")
	if bindTo == "" {
		return fmt.Errorf("prometheus not enabled and no bind address configured")
	}

	return checkTCP(bindTo)
}

func checkHTTP(url string) error {
	client := &http.Client{Timeout: healthCheckTimeout}

	resp, err := client.Get(url) //nolint: noctx
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, resp.Body) //nolint: errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	return nil
}

func checkTCP(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, healthCheckTimeout)
	if err != nil {
		return fmt.Errorf("health check TCP connect failed: %w", err)
	}

	conn.Close()

	return nil
}
