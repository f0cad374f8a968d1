// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity registry: %w", err)
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TaskTypes lists registered task types in file order.
func (r *ActivityRegistry) TaskTypes() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.TaskType)
	}
	return out
}

// Check reports structural problems: missing ids or task types, duplicates
// and unparseable timeouts.
func (r *ActivityRegistry) Check() []string {
	var problems []string
	seenID := make(map[string]bool)
	seenTask := make(map[string]bool)

	for i, a := range r.Activities {
		label := a.ID
		if label == "" {
			label = fmt.Sprintf("activities[%d]", i)
			problems = append(problems, label+": id is required")
		}
		if a.TaskType == "" {
			problems = append(problems, label+": taskType is required")
		}
		if seenID[a.ID] && a.ID != "" {
			problems = append(problems, label+": duplicate id")
		}
		if seenTask[a.TaskType] && a.TaskType != "" {
			problems = append(problems, label+": duplicate taskType "+a.TaskType)
		}
		seenID[a.ID] = true
		seenTask[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				problems = append(problems, label+": invalid timeout "+a.Timeout)
			}
		}
		if a.Retries < 0 {
			problems = append(problems, label+": retries must not be negative")
		}
		if a.ImplementationStatus != "" && !knownStatuses[a.ImplementationStatus] {
			problems = append(problems, label+": unknown implementationStatus "+a.ImplementationStatus)
		}
	}
	return problems
}

// SetField updates one scalar field of the activity with id.
func (r *ActivityRegistry) SetField(id, field, value string) error {
	var a *Activity
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			a = &r.Activities[i]
			break
		}
	}
	if a == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		if !knownStatuses[value] {
			return fmt.Errorf("invalid status value: %s", value)
		}
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Save writes the registry as indented JSON.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
