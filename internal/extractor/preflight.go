package extractor

import (
	"fmt"

	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/types"
)

// Preflight checks a plan against the schema before any query runs.
type Preflight struct {
	registry *schema.Registry
	logger   *logger.Logger
}

// NewPreflight creates a checker over reg.
func NewPreflight(reg *schema.Registry, log *logger.Logger) (*Preflight, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Preflight{registry: reg, logger: log}, nil
}

// Check validates the registry and then the plan.
func (p *Preflight) Check(plan Plan) error {
	p.logger.Info("Running preflight checks...")

	if err := p.registry.Validate(); err != nil {
		return &PreflightError{Check: "schema", Message: err.Error()}
	}

	switch pl := plan.(type) {
	case *ReflectedPlan:
		if err := p.CheckReflected(pl); err != nil {
			return err
		}
	case *DeclaredPlan:
		if err := p.CheckDeclared(pl.Schema); err != nil {
			return err
		}
	default:
		return &PreflightError{Check: "plan", Message: fmt.Sprintf("unsupported plan %T", plan)}
	}

	p.logger.Info("All preflight checks passed")
	return nil
}

// CheckReflected verifies the root model and its filter key.
func (p *Preflight) CheckReflected(plan *ReflectedPlan) error {
	m, err := p.registry.Resolve(plan.Type)
	if err != nil {
		return &PreflightError{Check: "models", Message: "root model is not registered", Models: []string{plan.Type.String()}}
	}
	if !validFilterKey(m, plan.FilterKey) {
		return &PreflightError{
			Check:   "filter_key",
			Message: fmt.Sprintf("%q is not an attribute of the root model", plan.FilterKey),
			Models:  []string{m.Type.String()},
		}
	}
	return nil
}

// CheckDeclared verifies every node of a declared schema, reporting all
// unknown models at once.
func (p *Preflight) CheckDeclared(s *DeclaredSchema) error {
	var missing []string
	var badKeys []string
	for _, n := range s.Nodes() {
		m, err := p.registry.ResolveName(n.ModelName)
		if err != nil {
			missing = append(missing, n.ModelName)
			continue
		}
		if n.FilterKey != "" && !validFilterKey(m, n.FilterKey) {
			badKeys = append(badKeys, m.Type.String()+"."+n.FilterKey)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{Check: "models", Message: "declared models are not registered", Models: missing}
	}
	if len(badKeys) > 0 {
		return &PreflightError{Check: "filter_key", Message: "filter keys are not model attributes", Models: badKeys}
	}
	return nil
}

func validFilterKey(m *schema.Model, key string) bool {
	return key == "" || key == types.PKKey || m.HasAttribute(key)
}
