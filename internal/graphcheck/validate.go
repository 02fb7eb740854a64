package graphcheck

import (
	"fmt"
	"strings"

	"github.com/flowctl/flowctl/internal/flowdef"
)

// graphIndex is what the node and edge passes learn about the document.
type graphIndex struct {
	nodes      []map[string]any    // first occurrence of each valid node id, in order
	types      map[string]string   // node id -> node_type, when set
	known      map[string]bool     // node ids
	startCount int                 // nodes with id "start", duplicates included
	outgoing   map[string][]string // source id -> string edge labels, in edge order
}

// Validate checks def against the workflow graph grammar: a single start
// node, labeled edges between known nodes, linear flow for ordinary nodes and
// exhaustive branches for decide nodes.
//
// Every check runs and contributes to the report; only a missing nodes or
// edges array stops validation early, with zero stats.
func Validate(def map[string]any) *Report {
	r := &Report{Errors: []string{}, Warnings: []string{}}

	nodes, nodesOK := def["nodes"].([]any)
	edges, edgesOK := def["edges"].([]any)
	if !nodesOK {
		r.errorf("definition.nodes must be an array")
	}
	if !edgesOK {
		r.errorf("definition.edges must be an array")
	}
	if !nodesOK || !edgesOK {
		return r
	}

	idx := &graphIndex{
		types:    make(map[string]string),
		known:    make(map[string]bool),
		outgoing: make(map[string][]string),
	}
	checkNodes(r, idx, nodes)
	checkStart(r, idx)
	checkEdges(r, idx, edges)
	r.Stats = Stats{
		Nodes:       len(nodes),
		Edges:       len(edges),
		DecideNodes: checkBranches(r, idx),
	}
	return r
}

// ValidateJSON decodes raw and validates it.
func ValidateJSON(raw []byte) (*Report, error) {
	def, err := flowdef.DecodeObject(raw)
	if err != nil {
		return nil, err
	}
	return Validate(def), nil
}

func checkNodes(r *Report, idx *graphIndex, nodes []any) {
	for i, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			r.errorf("node[%d] must be an object", i)
			continue
		}

		id, ok := node["id"].(string)
		if !ok || strings.TrimSpace(id) == "" {
			r.errorf("node[%d].id must be a non-empty string", i)
			continue
		}

		if id == StartNodeID {
			idx.startCount++
		}
		if idx.known[id] {
			// A second start node is reported once, by checkStart.
			if id != StartNodeID {
				r.errorf("duplicate node id: %s", id)
			}
			continue
		}
		idx.known[id] = true
		idx.nodes = append(idx.nodes, node)

		data, _ := node["data"].(map[string]any)
		nodeType, present := data["node_type"]
		if !present || !truthy(nodeType) {
			r.errorf("node %s is missing data.node_type", id)
			continue
		}
		typeName := display(nodeType, present)
		idx.types[id] = typeName
		if s, isString := nodeType.(string); !isString || !NodeTypes[s] {
			r.warnf("node %s has unknown node_type: %s", id, typeName)
		}
	}
}

func checkStart(r *Report, idx *graphIndex) {
	if idx.startCount != 1 {
		r.errorf(`graph must contain exactly one start node with id "start"`)
		return
	}
	if t, ok := idx.types[StartNodeID]; ok && t != NodeStart {
		r.errorf(`start node must have data.node_type = "start"`)
	}
}

func checkEdges(r *Report, idx *graphIndex, edges []any) {
	for i, item := range edges {
		edge, ok := item.(map[string]any)
		if !ok {
			r.errorf("edge[%d] must be an object", i)
			continue
		}

		rawSource, hasSource := edge["source"]
		rawTarget, hasTarget := edge["target"]
		source, sourceIsString := rawSource.(string)
		target, targetIsString := rawTarget.(string)
		label, labelIsString := edge["label"].(string)

		if !sourceIsString || !idx.known[source] {
			r.errorf("edge[%d] has invalid source: %s", i, display(rawSource, hasSource))
		}
		if !targetIsString || !idx.known[target] {
			r.errorf("edge[%d] has invalid target: %s", i, display(rawTarget, hasTarget))
		}
		if !labelIsString || strings.TrimSpace(label) == "" {
			r.errorf("edge[%d] must have a non-empty label", i)
		}

		// Grouped even when the edge itself was reported above.
		if sourceIsString && labelIsString {
			idx.outgoing[source] = append(idx.outgoing[source], label)
		}
	}
}

// checkBranches applies the branching rules to every node and returns the
// number of decide nodes.
func checkBranches(r *Report, idx *graphIndex) int {
	decideNodes := 0
	for _, node := range idx.nodes {
		id := node["id"].(string)
		outgoing := idx.outgoing[id]

		if idx.types[id] == NodeDecide {
			decideNodes++
			checkDecide(r, id, node, outgoing)
			continue
		}

		if len(outgoing) > 1 {
			r.errorf("node %s has %d outgoing edges; only decide nodes can branch", id, len(outgoing))
		}
		if len(outgoing) == 1 && outgoing[0] != NextLabel {
			r.errorf(`node %s outgoing edge label must be "next"`, id)
		}
	}
	return decideNodes
}

func checkDecide(r *Report, id string, node map[string]any, outgoing []string) {
	data, _ := node["data"].(map[string]any)
	config, _ := data["config"].(map[string]any)
	conditions, ok := config["conditions"].([]any)
	if !ok || len(conditions) == 0 {
		r.errorf("decide node %s must have config.conditions[]", id)
		return
	}

	var labels []string
	unique := make(map[string]bool)
	duplicate := false
	for _, item := range conditions {
		condition, _ := item.(map[string]any)
		label, isString := condition["label"].(string)
		if !isString || strings.TrimSpace(label) == "" {
			continue
		}
		if unique[label] {
			duplicate = true
			continue
		}
		unique[label] = true
		labels = append(labels, label)
	}
	if duplicate {
		r.errorf("decide node %s has duplicate condition labels", id)
	}

	edgeLabels := make(map[string]bool, len(outgoing))
	for _, label := range outgoing {
		edgeLabels[label] = true
	}
	for _, label := range labels {
		if !edgeLabels[label] {
			r.errorf(`decide node %s missing outgoing edge for label "%s"`, id, label)
		}
	}
	for _, label := range outgoing {
		if !unique[label] {
			r.warnf(`decide node %s has edge label "%s" not in conditions`, id, label)
		}
	}
}

// truthy treats the zero values a loosely typed document uses for "unset"
// (null, false, 0, "") as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// display renders a decoded JSON value for messages. Missing values print as
// "undefined" to tell them apart from an explicit null.
func display(v any, present bool) string {
	if !present {
		return "undefined"
	}
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case map[string]any:
		return "[object]"
	case []any:
		return "[array]"
	default:
		return fmt.Sprint(t)
	}
}
