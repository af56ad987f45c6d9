package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/melih/lighthouse-console/internal/core/domain"
)

// ErrMalformed is returned for payloads that match none of the accepted
// shapes.
var ErrMalformed = errors.New("malformed payload")

type categoryJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon"`
	Containers  []string        `json:"containers"`
	Description string          `json:"description"`
	Position    json.RawMessage `json:"position"`
}

type containerJSON struct {
	Name          string          `json:"name"`
	ContainerName string          `json:"container_name"`
	Status        string          `json:"status"`
	Installed     json.RawMessage `json:"installed"`
	Port          json.RawMessage `json:"port"`
	Image         string          `json:"image"`
	Volumes       []string        `json:"volumes"`
	Network       string          `json:"network"`
}

// member is one key/value pair of a JSON object in document order.
type member struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object keeping its key order, which
// encoding/json maps lose.
func orderedObject(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrMalformed)
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key is not a string", ErrMalformed)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, member{key: key, value: raw})
	}
	return out, nil
}

// unwrap returns the value under key when data is an object holding only
// that key.
func unwrap(data []byte, key string) []byte {
	members, err := orderedObject(data)
	if err != nil || len(members) != 1 || members[0].key != key {
		return data
	}
	v := bytes.TrimSpace(members[0].value)
	if len(v) == 0 || (v[0] != '{' && v[0] != '[') {
		return data
	}
	return v
}

func first(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

// decodeCategories accepts {"categories": {id: {...}}}, a bare id-keyed
// object, or an array of categories carrying their own ids. Object key
// order is the document order used for unpositioned categories.
func decodeCategories(data []byte) ([]domain.Category, error) {
	data = unwrap(data, "categories")

	var raw []categoryJSON
	switch first(data) {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		members, err := orderedObject(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, m := range members {
			var c categoryJSON
			if err := json.Unmarshal(m.value, &c); err != nil {
				continue
			}
			if c.ID == "" {
				c.ID = m.key
			}
			raw = append(raw, c)
		}
	default:
		return nil, fmt.Errorf("%w: categories", ErrMalformed)
	}

	out := make([]domain.Category, 0, len(raw))
	for _, c := range raw {
		if c.ID == "" {
			continue
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		out = append(out, domain.Category{
			ID:          c.ID,
			Name:        name,
			Icon:        c.Icon,
			Containers:  c.Containers,
			Description: c.Description,
			Position:    position(c.Position),
		})
	}
	return out, nil
}

// position reads an integer, a float or a numeric string. Anything else
// means the category has no explicit position.
func position(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && !math.IsNaN(f) {
		p := int(math.Round(f))
		return &p
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &n
		}
	}
	return nil
}

// decodeContainers accepts an array, a name-keyed object, or either under
// a "containers" key.
func decodeContainers(data []byte) ([]domain.Container, error) {
	data = unwrap(data, "containers")

	var raw []containerJSON
	switch first(data) {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		members, err := orderedObject(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, m := range members {
			var c containerJSON
			if err := json.Unmarshal(m.value, &c); err != nil {
				continue
			}
			if c.Name == "" && c.ContainerName == "" {
				c.Name = m.key
			}
			raw = append(raw, c)
		}
	default:
		return nil, fmt.Errorf("%w: containers", ErrMalformed)
	}

	out := make([]domain.Container, 0, len(raw))
	for _, c := range raw {
		name := c.Name
		if name == "" {
			name = c.ContainerName
		}
		if name == "" {
			continue
		}
		status, _ := domain.ParseStatus(c.Status)
		out = append(out, domain.Container{
			Name:      name,
			Status:    status,
			Installed: flexBool(c.Installed),
			Port:      flexString(c.Port),
			Image:     c.Image,
			Volumes:   c.Volumes,
			Network:   c.Network,
		})
	}
	return out, nil
}

func flexBool(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		b, _ = strconv.ParseBool(s)
		return b
	}
	return false
}

func flexString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// DecodeStatuses reads a status payload in any of the shapes the backend
// and the push channel use:
//
//	{"grafana": "running"}
//	{"grafana": {"status": "running"}}
//	[{"name": "grafana", "status": "running"}]
//	{"name": "grafana", "status": "running"}
//
// optionally wrapped in {"containers": ...} or {"statuses": ...}. Entries
// without a name or with an unrecognized status are dropped: a missing
// fact is no information, not a state.
func DecodeStatuses(data []byte) (map[string]domain.Status, error) {
	data = unwrap(unwrap(data, "containers"), "statuses")
	out := make(map[string]domain.Status)

	switch first(data) {
	case '[':
		var entries []containerJSON
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, e := range entries {
			addStatus(out, e)
		}
	case '{':
		if single, ok := singleEntity(data); ok {
			addStatus(out, single)
			return out, nil
		}
		members, err := orderedObject(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, m := range members {
			var s string
			if json.Unmarshal(m.value, &s) == nil {
				if st, ok := domain.ParseStatus(s); ok {
					out[m.key] = st
				}
				continue
			}
			var e containerJSON
			if json.Unmarshal(m.value, &e) == nil {
				e.Name, e.ContainerName = m.key, ""
				addStatus(out, e)
			}
		}
	default:
		return nil, fmt.Errorf("%w: statuses", ErrMalformed)
	}
	return out, nil
}

// singleEntity reports whether an object is one entity's delta rather than
// a name-keyed snapshot. A delta carries a string status next to its name,
// and that name is not itself a status word: {"name": "running"} is a
// snapshot entry for a container called "name".
func singleEntity(data []byte) (containerJSON, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return containerJSON{}, false
	}
	var status string
	raw, ok := fields["status"]
	if !ok || json.Unmarshal(raw, &status) != nil {
		return containerJSON{}, false
	}
	var e containerJSON
	if json.Unmarshal(data, &e) != nil {
		return containerJSON{}, false
	}
	name := e.Name
	if name == "" {
		name = e.ContainerName
	}
	if name == "" {
		return containerJSON{}, false
	}
	if _, isStatus := domain.ParseStatus(name); isStatus {
		return containerJSON{}, false
	}
	return e, true
}

func addStatus(out map[string]domain.Status, e containerJSON) {
	name := e.Name
	if name == "" {
		name = e.ContainerName
	}
	if name == "" {
		return
	}
	if st, ok := domain.ParseStatus(e.Status); ok {
		out[name] = st
	}
}
