package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// DefaultPort is the port Hudson listens on out of the box.
const DefaultPort = 8080

// ConfigurationError is returned when the endpoint cannot be built or
// resolved from the values it was given.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Field + ": " + e.Message
}

// Config holds connection settings for the CI server.
type Config struct {
	Host string
	Port int // 0 means DefaultPort
}

// Endpoint derives external-job URLs for a single CI server.
type Endpoint struct {
	host string
	port int
}

// Target is the resolved location of a job's postBuildResult resource.
type Target struct {
	URL  string
	Path string
}

// New validates cfg and returns an Endpoint. The host is a bare name or IP
// address; schemes, paths and ports belong elsewhere.
func New(cfg Config) (*Endpoint, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, &ConfigurationError{Field: "host", Message: "is required"}
	}
	if err := validateHost(host); err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, &ConfigurationError{
			Field:   "port",
			Message: fmt.Sprintf("%d is out of range", cfg.Port),
		}
	}

	ep := &Endpoint{host: host, port: port}
	if _, err := url.Parse(ep.BaseURL()); err != nil {
		return nil, &ConfigurationError{Field: "host", Message: fmt.Sprintf("%q is not a valid host", host)}
	}
	return ep, nil
}

func validateHost(host string) error {
	invalid := func(msg string) error {
		return &ConfigurationError{Field: "host", Message: fmt.Sprintf("%q %s", host, msg)}
	}

	switch {
	case strings.Contains(host, "://"):
		return invalid("must not include a scheme")
	case strings.ContainsAny(host, "/?#@"):
		return invalid("must not include a path, query or user info")
	case strings.IndexFunc(host, unicode.IsSpace) >= 0:
		return invalid("must not contain whitespace")
	case strings.Contains(host, ":") && net.ParseIP(host) == nil:
		return invalid("must not include a port; set the port separately")
	}
	return nil
}

func (e *Endpoint) Host() string { return e.host }

func (e *Endpoint) Port() int { return e.port }

// BaseURL returns http://{host}:{port}.
func (e *Endpoint) BaseURL() string {
	return "http://" + net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// Resolve returns the postBuildResult target for job. It is recomputed on
// every call. Each "/"-separated segment of job is escaped on its own, so
// folder-style names such as "folder/job/name" keep their slashes.
func (e *Endpoint) Resolve(job string) (Target, error) {
	if strings.TrimSpace(job) == "" {
		return Target{}, &ConfigurationError{Field: "job", Message: "is required"}
	}

	path := "/job/" + escapeJob(job) + "/postBuildResult"
	return Target{
		URL:  e.BaseURL() + path,
		Path: path,
	}, nil
}

func escapeJob(job string) string {
	segments := strings.Split(job, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
