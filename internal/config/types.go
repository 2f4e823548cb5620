package config

import (
	"fmt"
	"net"
	"time"

	"github.com/gantryio/gantry/internal/core/domain"
)

// Config holds all configuration for the gateway process.
type Config struct {
	Filename    string            `yaml:"-"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Pool        PoolConfig        `yaml:"pool"`
	Balancer    BalancerConfig    `yaml:"balancer"`
	Origins     []OriginConfig    `yaml:"origins"`
	Engineering EngineeringConfig `yaml:"engineering"`
}

// ServerConfig holds the listener configuration.
type ServerConfig struct {
	Host                    string        `yaml:"host"`
	TrustedProxyCIDRs       []string      `yaml:"trusted_proxy_cidrs"`
	TrustedProxyCIDRsParsed []*net.IPNet  // parsed once at load
	Port                    int           `yaml:"port"`
	EventLoops              int           `yaml:"event_loops"`
	IdleTimeout             time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout"`
	DebugRequests           bool          `yaml:"debug_requests"`
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PoolConfig holds the per-origin connection pool settings. Negative limits
// disable the corresponding check.
type PoolConfig struct {
	IdleTimeout           time.Duration `yaml:"idle_timeout"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout"`
	MaxConnectionsPerHost int           `yaml:"max_connections_per_host"`
	PerServerWaterline    int           `yaml:"per_server_waterline"`
}

// OriginConfig names one origin group and its servers.
type OriginConfig struct {
	Name    string               `yaml:"name"`
	Servers []OriginServerConfig `yaml:"servers"`
}

// OriginServerConfig holds one origin server endpoint.
type OriginServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DomainServers converts the configured endpoints into domain servers.
func (o *OriginConfig) DomainServers() []*domain.Server {
	servers := make([]*domain.Server, 0, len(o.Servers))
	for _, s := range o.Servers {
		servers = append(servers, domain.NewServer(s.Host, s.Port))
	}
	return servers
}

// BalancerConfig selects the load balancing strategy.
type BalancerConfig struct {
	Strategy string `yaml:"strategy"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogDir     string `yaml:"log_dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	FileOutput bool   `yaml:"file_output"`
}

// EngineeringConfig holds development/debugging configuration
type EngineeringConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddress string `yaml:"metrics_address"`
}

// PoolConfigFor builds the immutable pool configuration handed to the pools
// serving the named origin.
func (c *Config) PoolConfigFor(origin string) *domain.ConnectionPoolConfig {
	return domain.NewConnectionPoolConfig(
		origin,
		c.Pool.IdleTimeout,
		c.Pool.MaxConnectionsPerHost,
		c.Pool.PerServerWaterline,
	)
}
