package bootprobe

import (
	"os"
	"os/exec"
	goruntime "runtime"
)

// Context provides the host lookups the probes rely on. Every lookup can be
// replaced so tests describe a machine without touching the real one.
type Context struct {
	goos     string
	goarch   string
	getenv   func(string) string
	lookPath func(string) (string, error)
	hostname func() (string, error)
	readFile func(string) ([]byte, error)
	exists   func(string) bool
}

// Option customises a Context.
type Option func(*Context)

// WithPlatform overrides the operating system and architecture.
func WithPlatform(goos, goarch string) Option {
	return func(c *Context) {
		c.goos = goos
		c.goarch = goarch
	}
}

// WithEnv resolves environment variables from the provided map.
func WithEnv(env map[string]string) Option {
	return func(c *Context) {
		c.getenv = func(key string) string { return env[key] }
	}
}

// WithLookPath overrides the command lookup.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(c *Context) {
		if lookPath != nil {
			c.lookPath = lookPath
		}
	}
}

// WithHostname overrides the hostname lookup.
func WithHostname(hostname func() (string, error)) Option {
	return func(c *Context) {
		if hostname != nil {
			c.hostname = hostname
		}
	}
}

// WithFiles serves file reads and existence checks from the provided map.
func WithFiles(files map[string]string) Option {
	return func(c *Context) {
		c.readFile = func(path string) ([]byte, error) {
			data, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(data), nil
		}
		c.exists = func(path string) bool {
			_, ok := files[path]
			return ok
		}
	}
}

// NewContext constructs a Context backed by the running process.
func NewContext(opts ...Option) *Context {
	c := &Context{
		goos:     goruntime.GOOS,
		goarch:   goruntime.GOARCH,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		hostname: os.Hostname,
		readFile: os.ReadFile,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GOOS returns the probed operating system.
func (c *Context) GOOS() string { return c.goos }

// GOARCH returns the probed architecture.
func (c *Context) GOARCH() string { return c.goarch }

// Getenv returns the value of an environment variable.
func (c *Context) Getenv(key string) string { return c.getenv(key) }

// FileExists reports whether path exists.
func (c *Context) FileExists(path string) bool {
	if path == "" {
		return false
	}
	return c.exists(path)
}

// ReadFile reads an absolute path.
func (c *Context) ReadFile(path string) ([]byte, error) { return c.readFile(path) }

// CommandExists reports whether the command is resolvable on PATH.
func (c *Context) CommandExists(name string) bool {
	if name == "" {
		return false
	}
	_, err := c.lookPath(name)
	return err == nil
}

// Hostname returns the machine name.
func (c *Context) Hostname() (string, error) { return c.hostname() }
