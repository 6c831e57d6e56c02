package topology

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

func init() {
	// Report YAML field names (nodes[0].ip) rather than Go names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// LoadFile reads and validates the topology document at path.
func LoadFile(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a YAML or JSON topology document and validates it.
func Load(r io.Reader) (*Topology, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Parse decodes a topology document without validating it. Documents whose
// first non-blank character is '{' are decoded as JSON, anything else as YAML.
func Parse(data []byte) (*Topology, error) {
	var t Topology

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, malformed(err)
		}
		return &t, nil
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, malformed(err)
	}
	return &t, nil
}

// Validate checks required fields and host uniqueness. Every problem is
// reported, not just the first.
func Validate(t *Topology) error {
	var problems []ValidationError

	if strings.TrimSpace(t.Install.Version) == "" {
		problems = append(problems, ValidationError{
			Node:    -1,
			Field:   "install.version",
			Message: "install version is required",
		})
	}

	seen := make(map[string]int, len(t.Nodes))
	seenIP := make(map[string]int, len(t.Nodes))
	for i, n := range t.Nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)

		if err := validate.Struct(n); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("validate %s: %w", prefix, err)
			}
			for _, fe := range verrs {
				problems = append(problems, ValidationError{
					Node:    i,
					Host:    n.Host,
					Field:   prefix + "." + fieldPath(fe),
					Message: fieldMessage(fe),
				})
			}
		}

		if n.IP != "" {
			if first, dup := seenIP[n.IP]; dup {
				problems = append(problems, ValidationError{
					Node:    i,
					Host:    n.Host,
					Field:   prefix + ".ip",
					Message: fmt.Sprintf("duplicate ip, first declared at nodes[%d]", first),
				})
			} else {
				seenIP[n.IP] = i
			}
		}

		if n.Host == "" {
			continue
		}
		if first, dup := seen[n.Host]; dup {
			problems = append(problems, ValidationError{
				Node:    i,
				Host:    n.Host,
				Field:   prefix + ".host",
				Message: fmt.Sprintf("duplicate host, first declared at nodes[%d]", first),
			})
			continue
		}
		seen[n.Host] = i
	}

	if len(problems) > 0 {
		return &InvalidError{Problems: problems}
	}
	return nil
}

// fieldPath strips the struct name from the validator namespace, leaving
// e.g. "roles[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ip":
		return fmt.Sprintf("%q is not a valid IP address", fe.Value())
	case "hostname_rfc1123":
		return fmt.Sprintf("%q is not a valid hostname", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
