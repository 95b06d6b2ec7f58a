// Package policy evaluates Open Policy Agent (OPA) Rego policies against
// resolved conversion paths.
//
// Every policy is a Rego module whose deny rule produces a set of
// violations. A violation is either a string or an object with message,
// severity and hop fields. The input document describes one path:
//
//	{
//	  "source": "braket",
//	  "target": "qasm2",
//	  "hops": [{"index": 0, "source": "braket", "target": "qiskit",
//	            "converter": "braket_to_qiskit", "lossy": true}, ...],
//	  "cost": 12,
//	  "lossy": true,
//	  "extras": [],
//	  "context": {"operation": "transpile"}
//	}
//
// # Built-in Policies
//
//   - lossy-conversion: warns for each lossy hop
//   - max-path-length: warns when a path has more than MaxRecommendedHops hops
//   - plugin-hop: notes hops served by a plugin converter
//
// # Modes
//
// In advisory mode, violations are logged and published as
// policy.violation events and every path is allowed. In enforcing mode, a
// violation of severity error or critical rejects the path with a
// transpiler.ConversionPolicyError.
//
// # Usage
//
//	engine, err := policy.NewEngine(logger, policy.WithMode(policy.ModeEnforcing))
//	if err != nil {
//	    return err
//	}
//	if err := engine.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	t := transpiler.New(registry, catalog, transpiler.WithPathCheck(engine.PathCheck()))
//
// Custom .rego files may start with a "# severity: error" comment to set the
// default severity of their violations.
package policy
