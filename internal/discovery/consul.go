package discovery

import (
	"fmt"
	"log"
	"net"

	"github.com/hashicorp/consul/api"
)

type ConsulClient struct {
	client *api.Client
}

// ServiceConfig describes how the checkout service announces itself.
// Address may be left empty to advertise the host's outbound IP.
type ServiceConfig struct {
	Name       string
	ID         string
	Address    string
	Port       int
	HealthPath string
	Tags       []string
	Meta       map[string]string
}

// NewConsulClient connects to the local agent and fails fast when it is
// unreachable, so callers can fall back to static URLs.
func NewConsulClient(host string, port int) (*ConsulClient, error) {
	cfg := api.DefaultConfig()
	cfg.Address = net.JoinHostPort(host, fmt.Sprint(port))

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}
	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect to Consul at %s: %w", cfg.Address, err)
	}

	log.Printf("✅ Connected to Consul at %s", cfg.Address)
	return &ConsulClient{client: client}, nil
}

// advertiseAddress prefers the configured address and otherwise asks the
// kernel which interface routes outbound traffic.
func advertiseAddress(configured string) string {
	if configured != "" {
		return configured
	}
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// registration builds the agent entry. Terminals hold session state in
// memory, so a failing instance is dropped quickly rather than kept around.
func registration(cfg ServiceConfig, address string) *api.AgentServiceRegistration {
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	return &api.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
		Meta:    cfg.Meta,
		Check: &api.AgentServiceCheck{
			CheckID:                        cfg.ID + "-health",
			Name:                           cfg.Name + " health",
			HTTP:                           ServiceURL(address, cfg.Port) + healthPath,
			Method:                         "GET",
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Register announces the checkout service with its health check
func (c *ConsulClient) Register(cfg ServiceConfig) error {
	reg := registration(cfg, advertiseAddress(cfg.Address))

	if err := c.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("failed to register %s: %w", cfg.ID, err)
	}

	log.Printf("✅ Registered %s (ID: %s) at %s, tags %v", cfg.Name, cfg.ID, reg.Check.HTTP, cfg.Tags)
	return nil
}

// Deregister removes a service from Consul
func (c *ConsulClient) Deregister(serviceID string) error {
	if err := c.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	log.Printf("✅ Deregistered service: %s", serviceID)
	return nil
}

// GetServiceURL returns the URL of the first healthy instance of a service
func (c *ConsulClient) GetServiceURL(serviceName string) (string, error) {
	services, _, err := c.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get service: %w", err)
	}
	if len(services) == 0 {
		return "", fmt.Errorf("no healthy instances of %s found", serviceName)
	}

	service := services[0].Service
	address := service.Address
	if address == "" {
		address = services[0].Node.Address
	}
	return ServiceURL(address, service.Port), nil
}

// ServiceURL formats an http base URL, falling back to localhost.
func ServiceURL(address string, port int) string {
	if address == "" {
		address = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(address, fmt.Sprint(port)))
}

// URLResolver finds a service's base URL.
type URLResolver interface {
	GetServiceURL(serviceName string) (string, error)
}

// ResolveURL asks Consul for serviceName and falls back when Consul is
// absent or has no healthy instance.
func ResolveURL(r URLResolver, serviceName, fallback string) string {
	if r == nil || serviceName == "" {
		return fallback
	}
	url, err := r.GetServiceURL(serviceName)
	if err != nil {
		log.Printf("⚠️ Service %s not found, using %s: %v", serviceName, fallback, err)
		return fallback
	}
	log.Printf("✅ Discovered %s at %s", serviceName, url)
	return url
}
