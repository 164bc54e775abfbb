package tools

import (
	"context"
	"fmt"
	"maps"
	"math"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/toolrelay/toolrelay/internal/schema"
)

const nodeTypePrefix = "n8n-nodes-base."

// maxCronRuns caps parameters.count on cron nodes.
const maxCronRuns = 100

// execNode runs one node over items and returns its outputs by output index.
func (t *WorkflowTool) execNode(ctx context.Context, node WorkflowNode, items []Item, sb schema.Sandbox) ([][]Item, error) {
	if node.Disabled {
		return [][]Item{items}, nil
	}

	switch strings.TrimPrefix(node.Type, nodeTypePrefix) {
	case "start", "manualTrigger", "noOp":
		return [][]Item{items}, nil
	case "set":
		return execSet(node, items)
	case "code", "function":
		return execCode(ctx, node, items, sb)
	case "if":
		return execIf(ctx, node, items, sb)
	case "cron", "scheduleTrigger":
		return execCron(node, items, t.now())
	case "htmlExtract":
		return execHTMLExtract(node, items)
	default:
		return nil, fmt.Errorf("unsupported node type %q", node.Type)
	}
}

func stringParam(node WorkflowNode, key, def string) string {
	if v, ok := node.Parameters[key].(string); ok && v != "" {
		return v
	}
	return def
}

// execSet merges parameters.values into every item. With keepOnlySet the
// items are replaced by the values alone.
func execSet(node WorkflowNode, items []Item) ([][]Item, error) {
	values, _ := node.Parameters["values"].(map[string]any)
	keepOnly, _ := node.Parameters["keepOnlySet"].(bool)

	out := make([]Item, 0, len(items))
	for _, item := range items {
		next := Item{}
		if !keepOnly {
			next = maps.Clone(item)
			if next == nil {
				next = Item{}
			}
		}
		maps.Copy(next, values)
		out = append(out, next)
	}
	return [][]Item{out}, nil
}

// execCode runs parameters.code with the global items bound. The chunk must
// return a list of objects or a single object.
func execCode(ctx context.Context, node WorkflowNode, items []Item, sb schema.Sandbox) ([][]Item, error) {
	code := stringParam(node, "code", "")
	if code == "" {
		return nil, fmt.Errorf("code parameter is required")
	}
	v, err := sb.Eval(ctx, code, map[string]any{"items": items})
	if err != nil {
		return nil, err
	}

	switch r := v.(type) {
	case nil:
		return [][]Item{{}}, nil
	case map[string]any:
		return [][]Item{{r}}, nil
	case []any:
		out := make([]Item, 0, len(r))
		for i, e := range r {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("code returned a non-object at position %d", i+1)
			}
			out = append(out, m)
		}
		return [][]Item{out}, nil
	default:
		return nil, fmt.Errorf("code must return a list of objects, got %T", v)
	}
}

// execIf evaluates parameters.condition as a Lua expression per item, with
// item and index bound. Output 0 carries items that matched, output 1 the rest.
func execIf(ctx context.Context, node WorkflowNode, items []Item, sb schema.Sandbox) ([][]Item, error) {
	cond := stringParam(node, "condition", "")
	if cond == "" {
		return nil, fmt.Errorf("condition parameter is required")
	}

	matched, rest := make([]Item, 0), make([]Item, 0)
	for i, item := range items {
		v, err := sb.Eval(ctx, "return "+cond, map[string]any{"item": item, "index": i + 1})
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			matched = append(matched, item)
		} else {
			rest = append(rest, item)
		}
	}
	return [][]Item{matched, rest}, nil
}

// truthy follows Lua: only nil and false are false.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}

// execCron adds the next parameters.count run times of the cron expression in
// parameters.expression to every item as RFC 3339 strings.
func execCron(node WorkflowNode, items []Item, now time.Time) ([][]Item, error) {
	expr := stringParam(node, "expression", "")
	if expr == "" {
		return nil, fmt.Errorf("expression parameter is required")
	}
	if tz := stringParam(node, "timezone", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		now = now.In(loc)
	}
	sched, err := robfigcron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}

	count := 1
	if v, ok := node.Parameters["count"]; ok {
		n, ok := v.(float64)
		if !ok || n < 1 || n > maxCronRuns || n != math.Trunc(n) {
			return nil, fmt.Errorf("count must be a whole number from 1 to %d", maxCronRuns)
		}
		count = int(n)
	}

	var runs []any
	at := now
	for range count {
		at = sched.Next(at)
		if at.IsZero() {
			break
		}
		runs = append(runs, at.Format(time.RFC3339))
	}

	out := make([]Item, 0, len(items))
	for _, item := range items {
		next := maps.Clone(item)
		if next == nil {
			next = Item{}
		}
		next["nextRuns"] = runs
		out = append(out, next)
	}
	return [][]Item{out}, nil
}

// execHTMLExtract runs readability over the HTML found in parameters.field
// (default "html") of each item and adds title, textContent, excerpt, byline
// and siteName.
func execHTMLExtract(node WorkflowNode, items []Item) ([][]Item, error) {
	field := stringParam(node, "field", "html")
	pageURL, err := url.Parse(stringParam(node, "url", "http://localhost/"))
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}

	out := make([]Item, 0, len(items))
	for i, item := range items {
		html, ok := item[field].(string)
		if !ok {
			return nil, fmt.Errorf("item %d has no string field %q", i+1, field)
		}
		article, err := readability.FromReader(strings.NewReader(html), pageURL)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		next := maps.Clone(item)
		next["title"] = article.Title
		next["textContent"] = strings.TrimSpace(article.TextContent)
		next["excerpt"] = article.Excerpt
		next["byline"] = article.Byline
		next["siteName"] = article.SiteName
		out = append(out, next)
	}
	return [][]Item{out}, nil
}
