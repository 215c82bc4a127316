package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/s3keeper/internal/assets/schemas"
	"github.com/3leaps/s3keeper/pkg/match"
)

// SchemaID is the schema identifier for job manifests.
const SchemaID = "s3keeper/v1.0.0/job-manifest"

// Validation errors
var (
	// ErrSchemaNotFound indicates the embedded schema is missing.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached validator instance (compiled once from embedded schema)
var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/tasks/0/action").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns ErrValidationFailed.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks a manifest struct against the schema and then the
// cross-field rules.
//
// The struct form has already lost unknown fields; LoadFromBytes validates
// the raw input with ValidateRaw for that.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest for validation: %w", err)
	}
	if err := ValidateRaw(data); err != nil {
		return err
	}
	return checkRules(m)
}

// ValidateRaw checks raw JSON data against the embedded manifest schema.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.JobManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded job-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.JobManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}

// checkRules applies the rules the schema cannot express, collecting every
// problem rather than stopping at the first.
func checkRules(m *Manifest) error {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	names := make(map[string]bool, len(m.Tasks))
	for i := range m.Tasks {
		validateTask(&m.Tasks[i], fmt.Sprintf("/tasks/%d", i), names, add)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateTask(t *Task, path string, names map[string]bool, add func(string, string, ...any)) {
	if names[t.Name] {
		add(path+"/name", "duplicate task name %q", t.Name)
	}
	names[t.Name] = true

	if t.Action == ActionMove {
		if t.Prefix == "" {
			add(path+"/prefix", "is required for move")
		}
		if t.Move == nil {
			add(path+"/move/destination", "is required for move")
		}
	}

	if t.Move != nil && t.Action != ActionMove {
		add(path+"/move", "only valid for move tasks")
	}
	if t.UntilEmpty && t.Action != ActionDelete {
		add(path+"/until_empty", "only valid for delete tasks")
	}
	if (t.NoncurrentOnly || t.DeleteMarkersOnly) && t.Action != ActionPurgeVersions {
		add(path+"/noncurrent_only", "only valid for purge-versions tasks")
	}
	if t.Recursive && t.Delimiter != nil && *t.Delimiter == "" {
		add(path+"/recursive", "requires a delimiter")
	}
	if t.Cutoff != "" {
		if _, err := match.ParseAge(t.Cutoff); err != nil {
			add(path+"/cutoff", "%v", err)
		}
	}

	if t.Match != nil {
		if _, err := match.New(t.Match.config()); err != nil {
			add(path+"/match", "%v", err)
		}
	}
	if t.Filters != nil {
		if _, err := match.NewFilterFromConfig(t.Filters, time.Now()); err != nil {
			add(path+"/filters", "%v", err)
		}
	}

	// A delete with no narrowing at all would empty the bucket.
	if t.Action == ActionDelete && t.Prefix == "" && t.Match == nil && t.Filters == nil {
		add(path, "delete requires a prefix, match or filters")
	}
}

// MatcherConfig converts the task match block. A nil block matches all keys.
func (t *Task) MatcherConfig() match.Config {
	if t.Match == nil {
		return match.Config{}
	}
	return t.Match.config()
}

func (c *MatchConfig) config() match.Config {
	return match.Config{Includes: c.Includes, Excludes: c.Excludes, ExcludeHidden: c.ExcludeHidden}
}
