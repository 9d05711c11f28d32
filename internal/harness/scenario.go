package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cadence/internal/compiler"
	"github.com/roach88/cadence/internal/ir"
)

// Scenario drives an engine through scripted input and checks the
// resulting values and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the run in the
	// trace store and the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Nodes is an ordered mapping of root node id to directives. Kept as
	// a raw node so declaration order survives decoding.
	Nodes yaml.Node `yaml:"nodes"`

	// Layout configures eligibility and geometry.
	Layout *LayoutSpec `yaml:"layout,omitempty"`

	// Responses are canned loader answers, delivered as soon as a fetch
	// for the URL starts. URLs without a response stay outstanding until
	// a resolve step.
	Responses []Response `yaml:"responses,omitempty"`

	// Steps run in order after the nodes are registered.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// LayoutSpec is the harness stand-in for a layout engine.
type LayoutSpec struct {
	Hidden     []string               `yaml:"hidden,omitempty"`
	Geometries map[string]ir.Geometry `yaml:"geometry,omitempty"`
}

// Response is one loader answer.
type Response struct {
	URL     string    `yaml:"url"`
	Success *bool     `yaml:"success,omitempty"` // defaults to true
	Result  yaml.Node `yaml:"result,omitempty"`
}

// Succeeded reports the response outcome; absent means success.
func (r Response) Succeeded() bool {
	return r.Success == nil || *r.Success
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	// Tick runs this many ticks.
	Tick int `yaml:"tick,omitempty"`

	// Idle ticks until no work remains (bounded by MaxIdleTicks).
	Idle bool `yaml:"idle,omitempty"`

	// AdvanceMS moves the fake wall clock forward.
	AdvanceMS int `yaml:"advance_ms,omitempty"`

	// Set issues an imperative override.
	Set *SetStep `yaml:"set,omitempty"`

	// Resolve answers every outstanding fetch for a URL.
	Resolve *Response `yaml:"resolve,omitempty"`

	// Event fires a named input event on a node.
	Event *EventStep `yaml:"event,omitempty"`

	// Activate starts a directive explicitly.
	Activate *Ref `yaml:"activate,omitempty"`

	// Add registers directives, creating the node if it does not exist.
	Add *AddStep `yaml:"add,omitempty"`

	// Remove deletes a node and its subtree.
	Remove string `yaml:"remove,omitempty"`
}

// Ref names a directive on a node.
type Ref struct {
	Node string `yaml:"node"`
	Name string `yaml:"name"`
}

// SetStep is an imperative write.
type SetStep struct {
	Node     string    `yaml:"node"`
	Name     string    `yaml:"name"`
	Value    yaml.Node `yaml:"value"`
	Steps    *int      `yaml:"steps,omitempty"`
	Interval *int      `yaml:"interval,omitempty"`
	Easing   string    `yaml:"easing,omitempty"`
}

// EventStep fires an event.
type EventStep struct {
	Node  string `yaml:"node"`
	Event string `yaml:"event"`
}

// AddStep adds directives to an existing node, or creates a node under
// Parent (empty for a root) when Node is unknown.
type AddStep struct {
	Node       string    `yaml:"node"`
	Parent     string    `yaml:"parent,omitempty"`
	Directives yaml.Node `yaml:"directives"`
}

// Assertion validates final state or the recorded trace.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Node and Name address a directive (value, status, renders,
	// trace_count).
	Node string `yaml:"node,omitempty"`
	Name string `yaml:"name,omitempty"`

	// Expect is the expected value (value) or value sequence (renders).
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Status is the expected lifecycle status (status). "idle" means
	// never activated.
	Status string `yaml:"status,omitempty"`

	// Trace is a trace type (trace_count, stored).
	Trace string `yaml:"trace,omitempty"`

	// Count is the expected number of matching events.
	Count *int `yaml:"count,omitempty"`

	// Events is the expected order of first occurrences, each written
	// "node.name:type" (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertValue      = "value"
	AssertStatus     = "status"
	AssertRenders    = "renders"
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertStored     = "stored"
	AssertIdle       = "idle"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// RootNode is one decoded entry of Scenario.Nodes.
type RootNode struct {
	ID   string
	Spec ir.Spec
}

// RootNodes decodes the ordered node mapping.
func (s *Scenario) RootNodes() ([]RootNode, error) {
	spec, err := compiler.DecodeYAMLSpec(&s.Nodes)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	out := make([]RootNode, 0, len(spec))
	for _, e := range spec {
		directives, ok := e.Raw.(ir.Spec)
		if e.Raw == nil {
			directives, ok = ir.Spec{}, true
		}
		if !ok {
			return nil, fmt.Errorf("nodes.%s: directives must be a mapping", e.Name)
		}
		out = append(out, RootNode{ID: e.Name, Spec: directives})
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Nodes.Kind != yaml.MappingNode {
		return fmt.Errorf("nodes must be a mapping of node id to directives")
	}
	if _, err := s.RootNodes(); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Responses {
		if r.URL == "" {
			return fmt.Errorf("responses[%d]: url is required", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Tick != 0 {
		set++
		if step.Tick < 0 {
			return fmt.Errorf("tick must be positive")
		}
	}
	if step.Idle {
		set++
	}
	if step.AdvanceMS != 0 {
		set++
		if step.AdvanceMS < 0 {
			return fmt.Errorf("advance_ms must be positive")
		}
	}
	if step.Set != nil {
		set++
		if step.Set.Node == "" || step.Set.Name == "" {
			return fmt.Errorf("set: node and name are required")
		}
		if step.Set.Value.Kind == 0 {
			return fmt.Errorf("set: value is required")
		}
	}
	if step.Resolve != nil {
		set++
		if step.Resolve.URL == "" {
			return fmt.Errorf("resolve: url is required")
		}
	}
	if step.Event != nil {
		set++
		if step.Event.Node == "" || step.Event.Event == "" {
			return fmt.Errorf("event: node and event are required")
		}
	}
	if step.Activate != nil {
		set++
		if step.Activate.Node == "" || step.Activate.Name == "" {
			return fmt.Errorf("activate: node and name are required")
		}
	}
	if step.Add != nil {
		set++
		if step.Add.Node == "" {
			return fmt.Errorf("add: node is required")
		}
		if step.Add.Directives.Kind != yaml.MappingNode {
			return fmt.Errorf("add: directives must be a mapping")
		}
	}
	if step.Remove != "" {
		set++
	}

	switch set {
	case 0:
		return fmt.Errorf("step has no action")
	case 1:
		return nil
	default:
		return fmt.Errorf("step sets %d actions, exactly one is allowed", set)
	}
}

func validateAssertion(a Assertion) error {
	needRef := func() error {
		if a.Node == "" || a.Name == "" {
			return fmt.Errorf("node and name are required for %s", a.Type)
		}
		return nil
	}
	needCount := func() error {
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("non-negative count is required for %s", a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertValue:
		if err := needRef(); err != nil {
			return err
		}
		if a.Expect.Kind == 0 {
			return fmt.Errorf("expect is required for value")
		}
	case AssertRenders:
		if err := needRef(); err != nil {
			return err
		}
		if a.Expect.Kind != yaml.SequenceNode {
			return fmt.Errorf("expect must be a list for renders")
		}
	case AssertStatus:
		if err := needRef(); err != nil {
			return err
		}
		if a.Status == "" {
			return fmt.Errorf("status is required for status")
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("events list is required for trace_order")
		}
		for _, ev := range a.Events {
			if _, err := parseEventRef(ev); err != nil {
				return err
			}
		}
	case AssertTraceCount:
		if err := needRef(); err != nil {
			return err
		}
		if a.Trace == "" {
			return fmt.Errorf("trace is required for trace_count")
		}
		return needCount()
	case AssertStored:
		return needCount()
	case AssertIdle:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// decodeValue converts an optional YAML node into authored data.
func decodeValue(node *yaml.Node) (any, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	return compiler.DecodeYAML(node)
}
