package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// maxWorkflowSteps bounds node executions per run so cyclic connections
// terminate.
const maxWorkflowSteps = 1000

var workflowSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"workflowData": {
			"type": "object",
			"description": "The workflow data to execute"
		},
		"inputData": {
			"type": "object",
			"description": "Input data for the workflow"
		}
	},
	"required": ["workflowData"]
}`)

// Item is one unit of data flowing between workflow nodes.
type Item = map[string]any

// WorkflowNode is one node of an n8n-style workflow.
type WorkflowNode struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Disabled   bool           `json:"disabled"`
}

// ConnectionTarget names the node (and its input index) an output feeds.
type ConnectionTarget struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// WorkflowData is the workflow definition: nodes and, per source node and
// connection type, the targets of each output index.
type WorkflowData struct {
	Nodes       []WorkflowNode                             `json:"nodes"`
	Connections map[string]map[string][][]ConnectionTarget `json:"connections"`
}

// NodeRun records the outputs of one execution of a node.
type NodeRun struct {
	Output [][]Item `json:"output"`
}

// WorkflowResult is the data member of a successful run.
type WorkflowResult struct {
	RunData          map[string][]NodeRun `json:"runData"`
	LastNodeExecuted string               `json:"lastNodeExecuted"`
	Output           []Item               `json:"output"`
}

// WorkflowTool executes n8n-style workflows. Code and condition nodes run in
// the sandbox supplied by the invoker.
type WorkflowTool struct {
	log *slog.Logger
	now func() time.Time
}

// NewWorkflowTool creates a WorkflowTool.
func NewWorkflowTool(log *slog.Logger) *WorkflowTool {
	return &WorkflowTool{log: log.With("component", "workflow"), now: time.Now}
}

func (t *WorkflowTool) Name() string                   { return string(ToolWorkflow) }
func (t *WorkflowTool) Description() string            { return "Execute n8n workflows" }
func (t *WorkflowTool) Parameters() *jsonschema.Schema { return workflowSchema }

// Execute runs the workflow. Failures inside the workflow are reported in the
// result as {success:false, error}; only undecodable params fail the call.
func (t *WorkflowTool) Execute(ctx context.Context, params json.RawMessage, sb schema.Sandbox) (any, error) {
	var p struct {
		WorkflowData *WorkflowData `json:"workflowData"`
		InputData    any           `json:"inputData"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	res, err := t.run(ctx, p.WorkflowData, p.InputData, sb)
	if err != nil {
		t.log.Warn("workflow: execution failed", "err", err)
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	return map[string]any{"success": true, "data": res}, nil
}

type pendingRun struct {
	node  string
	items []Item
}

func (t *WorkflowTool) run(ctx context.Context, wf *WorkflowData, input any, sb schema.Sandbox) (*WorkflowResult, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflowData is required")
	}
	nodes, err := indexNodes(wf)
	if err != nil {
		return nil, err
	}
	starts := startNodes(wf)
	if len(starts) == 0 {
		return nil, fmt.Errorf("workflow has no start node")
	}

	initial, err := initialItems(input)
	if err != nil {
		return nil, err
	}

	queue := make([]pendingRun, 0, len(starts))
	for _, name := range starts {
		queue = append(queue, pendingRun{node: name, items: initial})
	}

	res := &WorkflowResult{RunData: make(map[string][]NodeRun)}
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= maxWorkflowSteps {
			return nil, fmt.Errorf("workflow exceeded %d node executions", maxWorkflowSteps)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := queue[0]
		queue = queue[1:]
		node := nodes[next.node]

		outputs, err := t.execNode(ctx, node, next.items, sb)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node.Name, err)
		}
		res.RunData[node.Name] = append(res.RunData[node.Name], NodeRun{Output: outputs})
		res.LastNodeExecuted = node.Name
		res.Output = flatten(outputs)

		for i, targets := range wf.Connections[node.Name]["main"] {
			if i >= len(outputs) || len(outputs[i]) == 0 {
				continue
			}
			for _, target := range targets {
				queue = append(queue, pendingRun{node: target.Node, items: outputs[i]})
			}
		}
	}
	return res, nil
}

func indexNodes(wf *WorkflowData) (map[string]WorkflowNode, error) {
	if len(wf.Nodes) == 0 {
		return nil, fmt.Errorf("workflow has no nodes")
	}
	nodes := make(map[string]WorkflowNode, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("workflow node without a name")
		}
		if _, dup := nodes[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", n.Name)
		}
		nodes[n.Name] = n
	}
	for from, byType := range wf.Connections {
		if _, ok := nodes[from]; !ok {
			return nil, fmt.Errorf("connection from unknown node %q", from)
		}
		for _, outputs := range byType {
			for _, targets := range outputs {
				for _, target := range targets {
					if _, ok := nodes[target.Node]; !ok {
						return nil, fmt.Errorf("connection to unknown node %q", target.Node)
					}
				}
			}
		}
	}
	return nodes, nil
}

// startNodes returns nodes with no incoming main connection, in declaration
// order.
func startNodes(wf *WorkflowData) []string {
	incoming := make(map[string]bool)
	for _, byType := range wf.Connections {
		for _, targets := range byType["main"] {
			for _, target := range targets {
				incoming[target.Node] = true
			}
		}
	}
	var starts []string
	for _, n := range wf.Nodes {
		if !incoming[n.Name] {
			starts = append(starts, n.Name)
		}
	}
	return starts
}

func initialItems(input any) ([]Item, error) {
	switch v := input.(type) {
	case nil:
		return []Item{{}}, nil
	case map[string]any:
		return []Item{v}, nil
	case []any:
		items := make([]Item, 0, len(v))
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("inputData[%d] is not an object", i)
			}
			items = append(items, m)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("inputData must be an object or a list of objects")
	}
}

func flatten(outputs [][]Item) []Item {
	out := make([]Item, 0)
	for _, o := range outputs {
		out = append(out, o...)
	}
	return out
}
