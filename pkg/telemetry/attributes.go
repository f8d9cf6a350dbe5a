// Package telemetry wires the completion layer's operation counts and
// latencies into OpenTelemetry metrics (pushed via OTLP/HTTP) and a small
// Prometheus pull endpoint for local scraping.
package telemetry

import (
	"fmt"
	"os"

	"github.com/jmespath/go-jmespath"
	"go.opentelemetry.io/otel/attribute"
)

// `AttributesProvider` contributes resource-level attributes collected once
// at process startup.
type AttributesProvider interface {
	Attributes() []attribute.KeyValue
}

// `CollectAttributes` merges attributes from multiple providers; later
// providers win on key collision.
func CollectAttributes(providers []AttributesProvider) []attribute.KeyValue {
	merged := make(map[string]attribute.KeyValue)
	for _, p := range providers {
		for _, attr := range p.Attributes() {
			merged[string(attr.Key)] = attr
		}
	}
	result := make([]attribute.KeyValue, 0, len(merged))
	for _, attr := range merged {
		result = append(result, attr)
	}
	return result
}

// `HostAttributesProvider` reports the local hostname as an attribute.
type HostAttributesProvider struct {
	Key string
}

func (p HostAttributesProvider) Attributes() []attribute.KeyValue {
	hostname, err := os.Hostname()
	if err != nil {
		return nil
	}
	return []attribute.KeyValue{attribute.String(p.Key, hostname)}
}

// `ProcessAttributesProvider` reports the process id as an attribute.
type ProcessAttributesProvider struct {
	Key string
}

func (p ProcessAttributesProvider) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int(p.Key, os.Getpid())}
}

// `ConfigAttributesProvider` resolves attribute values out of the loaded
// configuration document via JMESPath expressions, one expression per
// attribute key — e.g. {"completion.backend.region": "backend.options.region"}
// pulled straight from the parsed config tree. A missing path or a failed
// expression silently contributes no attribute rather than failing startup,
// since resource attributes are informational.
type ConfigAttributesProvider struct {
	Config      map[string]interface{}
	Expressions map[string]string
}

func (p ConfigAttributesProvider) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, expression := range p.Expressions {
		value, err := jmespath.Search(expression, p.Config)
		if err != nil || value == nil {
			continue
		}
		attrs = append(attrs, attribute.String(key, fmt.Sprintf("%v", value)))
	}
	return attrs
}
