package uniquekey

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-modulus/internal/models"
)

// RequestData contains the request parts a unique key can be read from
type RequestData struct {
	PathParams  map[string]string
	QueryParams map[string][]string
	Headers     http.Header
	Body        string
}

// Extract reads the unique key value a request carries. The bool is false
// when the service declares no key or the request has no non-empty value.
func Extract(spec *models.UniqueKeySpec, data *RequestData) (string, bool) {
	if spec == nil || spec.Modifier == "" || data == nil {
		return "", false
	}

	value := extractValue(spec.Target, spec.Modifier, data)
	return value, value != ""
}

// extractValue extracts a value from request data based on target and dotted modifier
func extractValue(target, modifier string, data *RequestData) string {
	switch target {
	case models.TargetPath:
		return data.PathParams[modifier]
	case models.TargetQuery:
		if vals, ok := data.QueryParams[modifier]; ok && len(vals) > 0 {
			return vals[0]
		}
		// Dotted access into nested or repeated params, e.g. user.id or ids.1
		return lookupJSON(queryView(data.QueryParams), modifier)
	case models.TargetHeaders:
		// Headers are case-insensitive
		return data.Headers.Get(modifier)
	case models.TargetBody:
		if data.Body == "" {
			return ""
		}
		return gjson.Get(data.Body, modifier).String()
	default:
		return ""
	}
}

// queryView turns query params into a JSON-friendly tree. Single values
// stay scalar, repeated ones become arrays, and bracketed keys nest:
// user[id]=42 becomes {"user": {"id": "42"}}, ids[]=a becomes {"ids": ["a"]}.
// When two keys claim the same node the first in key order wins.
func queryView(q map[string][]string) map[string]interface{} {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	view := make(map[string]interface{}, len(q))
	for _, k := range keys {
		vals := q[k]
		if len(vals) == 0 {
			continue
		}

		path, ok := bracketPath(k)
		if !ok {
			path = []string{k}
		}

		var leaf interface{} = vals
		if last := len(path) - 1; path[last] == "" {
			path = path[:last]
		} else if len(vals) == 1 {
			leaf = vals[0]
		}
		if len(path) == 0 {
			continue
		}
		setPath(view, path, leaf)
	}
	return view
}

// bracketPath splits a[b][c] into [a b c]. Keys without well-formed
// brackets are not split.
func bracketPath(key string) ([]string, bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return nil, false
	}

	path := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, false
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	// Only a trailing [] means append
	for _, seg := range path[1 : len(path)-1] {
		if seg == "" {
			return nil, false
		}
	}
	return path, true
}

func setPath(node map[string]interface{}, path []string, leaf interface{}) {
	for _, seg := range path[:len(path)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			if _, taken := node[seg]; taken {
				return
			}
			child = make(map[string]interface{})
			node[seg] = child
		}
		node = child
	}

	last := path[len(path)-1]
	if _, taken := node[last]; !taken {
		node[last] = leaf
	}
}

func lookupJSON(v interface{}, path string) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return gjson.GetBytes(raw, path).String()
}
