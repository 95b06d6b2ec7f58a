package policy

// Built-in policy names.
const (
	PolicyLossyConversion = "lossy-conversion"
	PolicyMaxPathLength   = "max-path-length"
	PolicyPluginHop       = "plugin-hop"
)

// MaxRecommendedHops is the path length above which max-path-length warns.
const MaxRecommendedHops = 4

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		lossyConversionPolicy(),
		maxPathLengthPolicy(),
		pluginHopPolicy(),
	}
}

// lossyConversionPolicy flags every lossy hop.
func lossyConversionPolicy() Policy {
	return Policy{
		Name:        PolicyLossyConversion,
		Description: "Warns when a conversion path contains a lossy hop",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"fidelity"},
		Rego: `package qbraid.policies.lossy

import rego.v1

deny contains violation if {
	some hop in input.hops
	hop.lossy
	violation := {
		"message": sprintf("hop %d (%s -> %s) may drop information", [hop.index, hop.source, hop.target]),
		"hop": hop.index,
	}
}
`,
	}
}

// maxPathLengthPolicy flags long conversion chains.
func maxPathLengthPolicy() Policy {
	return Policy{
		Name:        PolicyMaxPathLength,
		Description: "Warns when a conversion path is longer than four hops",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"fidelity", "performance"},
		Rego: `package qbraid.policies.length

import rego.v1

max_hops := 4

deny contains violation if {
	count(input.hops) > max_hops
	violation := {
		"message": sprintf("path from %s to %s has %d hops, more than %d", [input.source, input.target, count(input.hops), max_hops]),
	}
}
`,
	}
}

// pluginHopPolicy notes hops served by plugin converters.
func pluginHopPolicy() Policy {
	return Policy{
		Name:        PolicyPluginHop,
		Description: "Reports hops implemented by runtime plugins",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"plugins"},
		Rego: `package qbraid.policies.plugins

import rego.v1

deny contains violation if {
	some hop in input.hops
	startswith(hop.extra, "plugin:")
	violation := {
		"message": sprintf("hop %d uses converter %s from %s", [hop.index, hop.converter, hop.extra]),
		"hop": hop.index,
	}
}
`,
	}
}
