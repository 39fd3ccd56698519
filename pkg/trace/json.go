package trace

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// timeLayout is the fixed-width ISO-8601 form used on the wire. Fixed width
// keeps serialization byte-stable across marshal/unmarshal round trips.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// wireNode is the documented JSON form of a trace node.
type wireNode struct {
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	StartAt     string           `json:"start_at"`
	EndAt       *string          `json:"end_at"`
	Duration    *float64         `json:"duration"`
	Finished    bool             `json:"finished"`
	Cost        float64          `json:"cost"`
	Logs        []string         `json:"logs"`
	Result      *Result          `json:"result"`
	Attributes  map[string]any   `json:"attributes"`
	Children    map[string]*Node `json:"children"`
	TotalTokens *Totals          `json:"total_tokens,omitempty"`
}

// MarshalJSON serializes the node in the documented trace record format. It
// snapshots under the node's lock, so marshaling a live, still-running tree is
// safe; unfinished nodes carry a null end_at/duration/result.
func (n *Node) MarshalJSON() ([]byte, error) {
	n.mu.Lock()
	w := wireNode{
		Name:        n.name,
		Kind:        n.kind,
		StartAt:     n.startAt.Format(timeLayout),
		Finished:    n.finished,
		Cost:        n.cost,
		Logs:        make([]string, len(n.logs)),
		Attributes:  make(map[string]any, len(n.attrs)),
		Children:    make(map[string]*Node, len(n.children)),
		TotalTokens: n.totals,
	}
	copy(w.Logs, n.logs)
	for k, v := range n.attrs {
		w.Attributes[k] = v
	}
	for id, c := range n.children {
		w.Children[id] = c
	}
	if n.finished {
		end := n.endAt.Format(timeLayout)
		w.EndAt = &end
		d := durationMillis(n.startAt, n.endAt)
		w.Duration = &d
		r := *n.result
		w.Result = &r
	}
	n.mu.Unlock()

	return json.Marshal(w)
}

// UnmarshalJSON rebuilds a node (and its subtree) from the documented format.
// Paths are not part of the wire form; Decode restores them.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	start, err := time.Parse(timeLayout, w.StartAt)
	if err != nil {
		return fmt.Errorf("trace: bad start_at %q: %w", w.StartAt, err)
	}

	n.name = w.Name
	n.kind = w.Kind
	n.startAt = start
	n.finished = w.Finished
	n.cost = w.Cost
	n.logs = w.Logs
	n.attrs = w.Attributes
	n.result = w.Result
	n.totals = w.TotalTokens
	if n.attrs == nil {
		n.attrs = map[string]any{}
	}
	if w.EndAt != nil {
		end, err := time.Parse(timeLayout, *w.EndAt)
		if err != nil {
			return fmt.Errorf("trace: bad end_at %q: %w", *w.EndAt, err)
		}
		n.endAt = end
	}

	n.children = w.Children
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	n.order = make([]string, 0, len(n.children))
	for id := range n.children {
		n.order = append(n.order, id)
	}
	// Zero-padded ids sort lexically in spawn order.
	sort.Strings(n.order)
	return nil
}

// Decode parses a serialized trace tree and restores the derived node paths.
func Decode(data []byte) (*Node, error) {
	root := &Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, err
	}
	root.restorePaths("")
	return root, nil
}

// Encode serializes the tree rooted at n.
func Encode(n *Node) ([]byte, error) {
	return json.Marshal(n)
}

func (n *Node) restorePaths(parent string) {
	n.mu.Lock()
	n.path = parent
	order := make([]string, len(n.order))
	copy(order, n.order)
	children := make(map[string]*Node, len(n.children))
	for id, c := range n.children {
		children[id] = c
	}
	n.mu.Unlock()

	for _, id := range order {
		children[id].restorePaths(parent + "/" + id)
	}
}

func durationMillis(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
