// Package config loads a completectl configuration file (JSON or YAML) into
// typed Go structs, following the same "unmarshal to map[string]interface{},
// then pull fields out with defaults" approach the teacher's own config
// loader uses rather than struct tags — so a config file with unrecognized
// extra keys, or a value supplied as either a JSON number or a YAML int,
// parses the same way.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// `Config` is the root of a completectl configuration file.
type Config struct {
	TraceLevel uint64
	Backend    BackendConfig
	Telemetry  TelemetryConfig

	// Raw is the fully parsed configuration document, retained so
	// telemetry.ConfigAttributesProvider can resolve JMESPath expressions
	// against it (mirroring the teacher's own "config_dict" attribute
	// provider, which queries the whole config tree rather than a
	// pre-selected subset).
	Raw map[string]interface{}
}

// `BackendConfig` selects and configures exactly one storage backend.
type BackendConfig struct {
	Type  string // one of "memory", "s3", "sftp"
	S3    S3Config
	SFTP  SFTPConfig
	Memory MemoryConfig
}

type MemoryConfig struct {
	WriteCanAppend bool
}

type S3Config struct {
	Bucket                    string
	Prefix                    string
	Region                    string
	Endpoint                  string
	AccessKeyID               string
	SecretAccessKey           string
	AllowHTTP                 bool
	SkipTLSCertificateVerify  bool
	VirtualHostedStyleRequest bool
}

type SFTPConfig struct {
	Addr        string
	User        string
	Password    string
	Root        string
	DialTimeout time.Duration
}

// `TelemetryConfig` controls OTLP export and the Prometheus pull endpoint.
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	Insecure       bool
	ExportInterval time.Duration

	// MetricsAddr is where the Prometheus /metrics handler listens, e.g.
	// ":9464" (the OpenTelemetry Prometheus exporter's conventional port).
	MetricsAddr string

	// Attributes maps a resource attribute key to a JMESPath expression
	// evaluated against the full config document (Config.Raw), e.g.
	// {"completion.backend.region": "backend.options.region"}.
	Attributes map[string]string
}

// `Load` reads and parses the config file at path, dispatching on its
// extension (".json" or ".yaml"/".yml").
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	raw := make(map[string]interface{})
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("config: parsing %q as JSON: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("config: parsing %q as YAML: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unrecognized config file extension %q", ext)
	}

	return parse(raw)
}

func parse(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{Raw: raw}

	cfg.TraceLevel, _ = parseUint64(raw, "trace_level", uint64(0))

	backendMap, ok := asMap(raw, "backend")
	if !ok {
		return nil, fmt.Errorf("config: missing required \"backend\" section")
	}

	backendType, ok := parseString(backendMap, "type", nil)
	if !ok {
		return nil, fmt.Errorf("config: backend.type is required")
	}
	cfg.Backend.Type = backendType

	switch backendType {
	case "memory":
		cfg.Backend.Memory.WriteCanAppend, _ = parseBool(backendMap, "write_can_append", false)
	case "s3":
		s3Map, _ := asMap(backendMap, "options")
		cfg.Backend.S3.Bucket, ok = parseString(s3Map, "bucket", nil)
		if !ok {
			return nil, fmt.Errorf("config: backend.options.bucket is required for type \"s3\"")
		}
		cfg.Backend.S3.Prefix, _ = parseString(s3Map, "prefix", "")
		cfg.Backend.S3.Region, ok = parseString(s3Map, "region", nil)
		if !ok {
			return nil, fmt.Errorf("config: backend.options.region is required for type \"s3\"")
		}
		cfg.Backend.S3.Endpoint, ok = parseString(s3Map, "endpoint", nil)
		if !ok {
			return nil, fmt.Errorf("config: backend.options.endpoint is required for type \"s3\"")
		}
		cfg.Backend.S3.AccessKeyID, _ = parseString(s3Map, "access_key_id", "")
		cfg.Backend.S3.SecretAccessKey, _ = parseString(s3Map, "secret_access_key", "")
		cfg.Backend.S3.AllowHTTP, _ = parseBool(s3Map, "allow_http", false)
		cfg.Backend.S3.SkipTLSCertificateVerify, _ = parseBool(s3Map, "skip_tls_certificate_verify", false)
		cfg.Backend.S3.VirtualHostedStyleRequest, _ = parseBool(s3Map, "virtual_hosted_style_request", false)
	case "sftp":
		sftpMap, _ := asMap(backendMap, "options")
		cfg.Backend.SFTP.Addr, ok = parseString(sftpMap, "addr", nil)
		if !ok {
			return nil, fmt.Errorf("config: backend.options.addr is required for type \"sftp\"")
		}
		cfg.Backend.SFTP.User, _ = parseString(sftpMap, "user", "")
		cfg.Backend.SFTP.Password, _ = parseString(sftpMap, "password", "")
		cfg.Backend.SFTP.Root, _ = parseString(sftpMap, "root", "/")
		dialTimeout, _ := parseSeconds(sftpMap, "dial_timeout", time.Duration(10*time.Second))
		cfg.Backend.SFTP.DialTimeout = dialTimeout
	default:
		return nil, fmt.Errorf("config: unrecognized backend.type %q (want one of \"memory\", \"s3\", \"sftp\")", backendType)
	}

	if telemetryMap, ok := asMap(raw, "telemetry"); ok {
		cfg.Telemetry.Enabled, _ = parseBool(telemetryMap, "enabled", false)
		cfg.Telemetry.OTLPEndpoint, _ = parseString(telemetryMap, "otlp_endpoint", "")
		cfg.Telemetry.ServiceName, _ = parseString(telemetryMap, "service_name", "completectl")
		cfg.Telemetry.Insecure, _ = parseBool(telemetryMap, "insecure", true)
		exportInterval, _ := parseSeconds(telemetryMap, "export_interval", time.Duration(60*time.Second))
		cfg.Telemetry.ExportInterval = exportInterval
		cfg.Telemetry.MetricsAddr, _ = parseString(telemetryMap, "metrics_addr", ":9464")
		cfg.Telemetry.Attributes = parseStringMap(telemetryMap, "attributes")
	}

	return cfg, nil
}

func asMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]interface{})
	return sub, ok
}

func parseBool(m map[string]interface{}, key string, dflt interface{}) (b, ok bool) {
	v, ok := m[key]
	if ok {
		b, ok = v.(bool)
		return
	}
	if dflt == nil {
		return false, false
	}
	b, ok = dflt.(bool)
	return
}

func parseString(m map[string]interface{}, key string, dflt interface{}) (s string, ok bool) {
	v, ok := m[key]
	if ok {
		s, ok = v.(string)
		if ok {
			s = os.ExpandEnv(s)
		}
		return
	}
	if dflt == nil {
		return "", false
	}
	s, ok = dflt.(string)
	if ok {
		s = os.ExpandEnv(s)
	}
	return
}

func parseStringMap(m map[string]interface{}, key string) map[string]string {
	sub, ok := asMap(m, key)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(sub))
	for k, v := range sub {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

func parseUint64(m map[string]interface{}, key string, dflt interface{}) (u uint64, ok bool) {
	v, ok := m[key]
	if ok {
		switch n := v.(type) {
		case float64:
			u = uint64(n)
			ok = float64(u) == n
		case int:
			u = uint64(n)
			ok = int(u) == n
		case uint64:
			u, ok = n, true
		default:
			ok = false
		}
		return
	}
	if dflt == nil {
		return 0, false
	}
	u, ok = dflt.(uint64)
	return
}

func parseSeconds(m map[string]interface{}, key string, dflt interface{}) (d time.Duration, ok bool) {
	dDflt, dfltOK := dflt.(time.Duration)
	var uDflt interface{}
	if dfltOK {
		uDflt = uint64(dDflt) / uint64(time.Second)
	}
	seconds, ok := parseUint64(m, key, uDflt)
	if !ok {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
