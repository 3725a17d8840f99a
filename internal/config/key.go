// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag, in the
// same layered style as the teacher's server/agent configuration.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix ZKSAAS_)
//  3. Config file (config.yaml in . or /etc/zksaas/)
//  4. Compiled defaults
package config

// Viper keys for node configuration.
const (
	keyNodeDataDir                 = "node.data_dir"
	keyNodeBindHostname            = "node.bind_hostname"
	keyNodeBasePort                = "node.base_port"
	keyNodeAdvertiseHost           = "node.advertise_host"
	keyNodeKeystoreSeed            = "node.keystore_seed"
	keyNodeHandshakeTimeoutSeconds = "node.handshake_timeout_seconds"
)

// keyRegistryOperators is the static operator registry's viper key.
// Its value is a list of tables, not a scalar, so it is loaded via
// Config.Operators rather than through the Option/flag machinery.
const keyRegistryOperators = "registry.operators"
