package normalizer

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultMaxDepth bounds the fallback tree search. Top level keys are at
// depth 1.
const DefaultMaxDepth = 6

// Match is a node found by a tree search.
type Match struct {
	Path  string
	Key   string
	Value gjson.Result
}

// VisitFunc is called for every object member and array element. key is
// the member name, or the index for array elements. Returning false stops
// the walk.
type VisitFunc func(path, key string, value gjson.Result, depth int) bool

// Walk visits doc depth first in document order, descending no deeper than
// maxDepth.
func Walk(doc gjson.Result, maxDepth int, visit VisitFunc) {
	walk(doc, "", 1, maxDepth, visit)
}

func walk(node gjson.Result, prefix string, depth, maxDepth int, visit VisitFunc) bool {
	if depth > maxDepth || !(node.IsObject() || node.IsArray()) {
		return true
	}

	keepGoing := true
	index := 0
	node.ForEach(func(k, v gjson.Result) bool {
		var key string
		if node.IsArray() {
			key = strconv.Itoa(index)
			index++
		} else {
			key = k.String()
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if !visit(path, key, v, depth) {
			keepGoing = false
			return false
		}
		if !walk(v, path, depth+1, maxDepth, visit) {
			keepGoing = false
			return false
		}
		return true
	})
	return keepGoing
}

// FindFirst returns the first node, in document order, accepted by match.
func FindFirst(doc gjson.Result, maxDepth int, match func(key string, value gjson.Result) bool) (Match, bool) {
	var found Match
	var ok bool
	Walk(doc, maxDepth, func(path, key string, value gjson.Result, _ int) bool {
		if match(key, value) {
			found = Match{Path: path, Key: key, Value: value}
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

var (
	transactionAliases = []string{"transaction", "order", "pedido"}
	// Keys that contain a transaction alias but carry metadata about it.
	transactionNoise = []string{"date", "time", "status", "type", "count", "bump", "_at", "url"}
	durationKeys     = map[string]bool{"durationdays": true, "duration_days": true, "plan_duration_days": true}
	planKeys         = map[string]bool{
		"plantype": true, "plan_type": true, "plan": true,
		"plan_id": true, "planid": true, "plan_code": true, "plan_name": true,
	}
)

// SearchEmail looks for the first key containing "email" whose value looks
// like an address.
func SearchEmail(doc gjson.Result, maxDepth int) (Match, bool) {
	return FindFirst(doc, maxDepth, func(key string, v gjson.Result) bool {
		return strings.Contains(strings.ToLower(key), "email") && looksLikeEmail(v)
	})
}

// SearchTransaction looks for the first key matching a transaction alias
// with a scalar value, or an object value carrying an id or code.
func SearchTransaction(doc gjson.Result, maxDepth int) (Match, bool) {
	var found Match
	var ok bool
	Walk(doc, maxDepth, func(path, key string, v gjson.Result, _ int) bool {
		if !isTransactionKey(key) {
			return true
		}
		if id := scalarID(v); id != "" {
			found, ok = Match{Path: path, Key: key, Value: v}, true
			return false
		}
		if v.IsObject() {
			for _, sub := range []string{"id", "code", "transaction"} {
				inner := v.Get(sub)
				if scalarID(inner) != "" {
					found, ok = Match{Path: path + "." + sub, Key: sub, Value: inner}, true
					return false
				}
			}
		}
		return true
	})
	return found, ok
}

// SearchDurationDays looks for an explicit durationDays style field.
func SearchDurationDays(doc gjson.Result, maxDepth int) (int, bool) {
	m, ok := FindFirst(doc, maxDepth, func(key string, v gjson.Result) bool {
		if !durationKeys[strings.ToLower(key)] {
			return false
		}
		return v.Type == gjson.Number || isNumericString(v)
	})
	if !ok {
		return 0, false
	}
	n := int(m.Value.Int())
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// SearchPlanIdentifier looks for the first plan style key whose string
// value known accepts. Values that are not recognized plans are passed
// over, so a provider's own plan object or numeric id never wins.
func SearchPlanIdentifier(doc gjson.Result, maxDepth int, known func(string) bool) (Match, bool) {
	return FindFirst(doc, maxDepth, func(key string, v gjson.Result) bool {
		if !planKeys[strings.ToLower(key)] || v.Type != gjson.String {
			return false
		}
		return known(v.Str)
	})
}

func isTransactionKey(key string) bool {
	k := strings.ToLower(key)
	matched := false
	for _, alias := range transactionAliases {
		if strings.Contains(k, alias) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, noise := range transactionNoise {
		if strings.Contains(k, noise) {
			return false
		}
	}
	return true
}

func scalarID(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

func looksLikeEmail(v gjson.Result) bool {
	if v.Type != gjson.String {
		return false
	}
	s := strings.TrimSpace(v.Str)
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n")
}

func isNumericString(v gjson.Result) bool {
	if v.Type != gjson.String || v.Str == "" {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(v.Str))
	return err == nil
}
