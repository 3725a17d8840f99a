package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cosnark/zksaas-node/internal/registry"
)

// Config wraps a viper instance and provides typed accessors for every
// configuration key. Create one via New().
type Config struct {
	v *viper.Viper
}

// New initialises a Config by loading values from environment
// variables, the config file, and compiled defaults (in that priority
// order; CLI flags, bound later via BindFlags, take highest priority).
func New() (*Config, error) {
	v := viper.New()

	for _, o := range NodeOptions {
		v.SetDefault(o.Key, o.Default)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/zksaas/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables are prefixed with ZKSAAS_ and use
	// underscores in place of dots (e.g. ZKSAAS_NODE_DATA_DIR).
	v.SetEnvPrefix("ZKSAAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers CLI flags for the given option slice and binds
// them to the underlying viper keys so that flag values override file
// and environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// DataDir returns the node's data directory, the root of the layout
// documented in spec.md §6 (keystore/, mpc_net/, circuit_db, artifacts/).
func (c *Config) DataDir() string {
	return c.v.GetString(keyNodeDataDir)
}

// BindHostname returns the hostname the node binds its control-plane
// and MPC mesh listeners to.
func (c *Config) BindHostname() string {
	return c.v.GetString(keyNodeBindHostname)
}

// BasePort returns the base port the node's listeners derive from:
// BasePort for the Party Transcript control plane, BasePort+1 for the
// TLS mesh.
func (c *Config) BasePort() int {
	return c.v.GetInt(keyNodeBasePort)
}

// ControlPlaneAddress returns the bind address for this node's Party
// Transcript control-plane listener.
func (c *Config) ControlPlaneAddress() string {
	return net.JoinHostPort(c.BindHostname(), strconv.Itoa(c.BasePort()))
}

// MeshBindAddress returns the bind address for this node's TLS mesh
// listener.
func (c *Config) MeshBindAddress() string {
	return net.JoinHostPort(c.BindHostname(), strconv.Itoa(c.BasePort()+1))
}

// AdvertiseHost returns the host other operators dial to reach this
// node, embedded as a Subject Alternative Name in its self-signed mesh
// certificate and announced during Config Exchange.
func (c *Config) AdvertiseHost() string {
	return c.v.GetString(keyNodeAdvertiseHost)
}

// MeshAdvertiseAddress returns the "host:port" this node reveals to
// peers during Config Exchange as the address to dial for the TLS
// mesh, as opposed to MeshBindAddress, which is only the local bind
// address and may differ from it behind a NAT or reverse proxy.
func (c *Config) MeshAdvertiseAddress() string {
	return net.JoinHostPort(c.AdvertiseHost(), strconv.Itoa(c.BasePort()+1))
}

// KeystoreSeed returns the deterministic operator keystore seed, or
// the empty string if the node should generate a random identity on
// first boot.
func (c *Config) KeystoreSeed() string {
	return c.v.GetString(keyNodeKeystoreSeed)
}

// HandshakeTimeout returns the configured TLS mesh handshake deadline.
// The Session Manager does not read it: every mesh it establishes uses
// mesh.DefaultHandshakeTimeout (60 seconds).
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.v.GetInt(keyNodeHandshakeTimeoutSeconds)) * time.Second
}

// operatorEntry is the config-file shape of one registry.Operator,
// with the public key given as hex so it reads naturally from YAML.
type operatorEntry struct {
	PublicKeyHex   string `mapstructure:"public_key"`
	ControlAddress string `mapstructure:"control_address"`
}

// Operators decodes the configured static operator set into the
// registry package's domain type.
func (c *Config) Operators() ([]registry.Operator, error) {
	var entries []operatorEntry
	if err := c.v.UnmarshalKey(keyRegistryOperators, &entries); err != nil {
		return nil, fmt.Errorf("decode registry.operators: %w", err)
	}

	operators := make([]registry.Operator, 0, len(entries))
	for i, e := range entries {
		pk, err := decodeHexPublicKey(e.PublicKeyHex)
		if err != nil {
			return nil, fmt.Errorf("registry.operators[%d]: %w", i, err)
		}
		operators = append(operators, registry.Operator{PublicKey: pk, ControlAddress: e.ControlAddress})
	}
	return operators, nil
}

func decodeHexPublicKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("public_key must be hex-encoded: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("public_key must not be empty")
	}
	return b, nil
}
