package config

import "strings"

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// NodeOptions defines the scalar configuration entries a node reads
// at startup. Each entry is registered as a viper default and a CLI
// flag. Defaults follow spec.md §6: base port 10000, bind hostname
// 0.0.0.0.
var NodeOptions = []Option{
	{Key: keyNodeDataDir, Flag: toFlag(keyNodeDataDir), Default: "./data", Description: "Node data directory"},
	{Key: keyNodeBindHostname, Flag: toFlag(keyNodeBindHostname), Default: "0.0.0.0", Description: "Hostname the node binds its listeners to"},
	{Key: keyNodeBasePort, Flag: toFlag(keyNodeBasePort), Default: 10000, Description: "Base port; the control-plane and MPC mesh listeners derive their ports from it"},
	{Key: keyNodeAdvertiseHost, Flag: toFlag(keyNodeAdvertiseHost), Default: "localhost", Description: "Host other operators dial to reach this node"},
	{Key: keyNodeKeystoreSeed, Flag: toFlag(keyNodeKeystoreSeed), Default: "", Description: "Deterministic operator keystore seed (leave empty to generate a random identity)"},
	{Key: keyNodeHandshakeTimeoutSeconds, Flag: toFlag(keyNodeHandshakeTimeoutSeconds), Default: 60, Description: "TLS mesh handshake timeout in seconds (not read by the Session Manager, which uses a fixed 60s)"},
}

// toFlag converts a viper key like "node.bind_hostname" into a CLI
// flag like "bind-hostname" by lower-casing, replacing dots and
// underscores with hyphens, and stripping the "node-" prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "node-")
	return flag
}
