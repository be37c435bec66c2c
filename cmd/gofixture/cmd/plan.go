package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/config"
	"github.com/dbsmedya/gofixture/internal/database"
	"github.com/dbsmedya/gofixture/internal/extractor"
	"github.com/dbsmedya/gofixture/internal/graph"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
)

var (
	planJob       string
	planModel     string
	planApp       string
	planFilterKey string
	planSchema    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the extraction plan for a job",
	Long: `Plan shows what an extraction would walk, without reading any records.

The plan shows:
  - Relation tree from the root model (or the declared schema tree)
  - Load order of the models involved (parents first)
  - Foreign keys between those models
  - Effective extraction settings

Example:
  gofixture plan --config gofixture.yaml --job albums`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planJob, "job", "j", "",
		"Job name from configuration file")
	planCmd.Flags().StringVarP(&planModel, "model", "m", "",
		"Root model (app.model)")
	planCmd.Flags().StringVar(&planApp, "app", "",
		"App of --model")
	planCmd.Flags().StringVarP(&planFilterKey, "filter-key", "k", "",
		"Attribute the keys are matched against (default pk)")
	planCmd.Flags().StringVar(&planSchema, "schema", "",
		"Declared schema file")
	planCmd.MarkFlagsMutuallyExclusive("job", "model", "schema")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	mgr := database.NewManager(cfg)
	defer func() { _ = mgr.Close() }()

	reg, err := buildRegistry(context.Background(), cfg, mgr, false, log)
	if err != nil {
		return err
	}

	t := target{Job: planJob, Model: planModel, App: planApp, FilterKey: planFilterKey, SchemaFile: planSchema}
	plan, extraction, err := resolvePlan(cfg, reg, t)
	if err != nil {
		return err
	}
	return printPlan(cfg, reg, plan, extraction)
}

// printPlan renders the relation tree, load order and settings of a plan.
func printPlan(cfg *config.Config, reg *schema.Registry, plan extractor.Plan, extraction config.ExtractionConfig) error {
	var (
		tree  []string
		types []schema.LogicalType
		err   error
	)
	switch p := plan.(type) {
	case *extractor.ReflectedPlan:
		tree, types, err = reflectedTree(schema.NewReflector(reg), p.Type, extraction.MaxDepth)
	case *extractor.DeclaredPlan:
		tree, types = declaredTree(reg, p.Schema)
	default:
		err = fmt.Errorf("unsupported plan %T", plan)
	}
	if err != nil {
		return err
	}

	g, err := graph.NewBuilder(reg).Only(types...).Build()
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	order, cycleErr := g.LoadOrderWithFallback()

	maxDepth := "unlimited"
	if extraction.MaxDepth > 0 {
		maxDepth = fmt.Sprintf("%d levels", extraction.MaxDepth)
	}
	summary := []string{
		"[ Plan Summary ]",
		strings.Repeat("-", 16),
		fmt.Sprintf("Plan:           %s", plan.Name()),
		fmt.Sprintf("Models:         %d", len(types)),
		fmt.Sprintf("Max Depth:      %s", maxDepth),
		"",
		"[ Output ]",
		strings.Repeat("-", 10),
		fmt.Sprintf("Directory:      %s", extraction.OutputDir),
		fmt.Sprintf("Deduplicate:    %v", extraction.Deduplicate),
		fmt.Sprintf("Indent:         %d", extraction.Indent),
		"",
		"[ Verification ]",
		strings.Repeat("-", 16),
		fmt.Sprintf("Method:         %s", cfg.Verification.Method),
	}

	printHeader("Relation Tree")
	fmt.Fprintln(outputWriter)
	printSideBySide(strings.Join(tree, "\n"), summary, 4)

	fmt.Fprintln(outputWriter)
	printSection("Load Order (parent models first)")
	for i, name := range order {
		printOrderItem(i+1, g.GetNode(name), g.GetParents(name))
	}
	if cycleErr != nil {
		fmt.Fprintf(outputWriter, "  %s %v\n", failMark(), cycleErr)
	}

	edges := g.AllEdges()
	if len(edges) > 0 {
		fmt.Fprintln(outputWriter)
		printSection("Foreign Keys")
		for _, edge := range edges {
			for _, meta := range g.GetEdgeMeta(edge.From, edge.To) {
				fmt.Fprintf(outputWriter, "  • %s → %s (%s, column %s)\n", edge.To, edge.From, meta.Attribute, meta.Column)
			}
		}
	}
	return nil
}

// printOrderItem prints a model in the load order list
func printOrderItem(num int, node *graph.Node, parents []string) {
	numStr := fmt.Sprintf("[%d]", num)
	if len(parents) == 0 {
		fmt.Fprintf(outputWriter, "  %s %s (table %s)\n", numStr, node.Name, node.Table)
		return
	}
	fmt.Fprintf(outputWriter, "  %s %s (table %s) | after: %s\n", numStr, node.Name, node.Table, strings.Join(parents, ", "))
}

// reflectedTree renders the relation types reachable from root. Each type is
// expanded once; later occurrences are marked and not repeated.
func reflectedTree(r *schema.Reflector, root schema.LogicalType, maxDepth int) ([]string, []schema.LogicalType, error) {
	if _, err := r.Registry().Resolve(root); err != nil {
		return nil, nil, err
	}

	lines := []string{headerStyle.Sprint(root.String())}
	types := []schema.LogicalType{root}
	expanded := map[schema.LogicalType]bool{root: true}

	type branch struct {
		label string
		next  schema.LogicalType
	}

	var walk func(t schema.LogicalType, prefix string, depth int) error
	walk = func(t schema.LogicalType, prefix string, depth int) error {
		declared, err := r.ListDeclaredRelations(t)
		if err != nil {
			return err
		}
		target, err := r.ListTargetRelations(t)
		if err != nil {
			return err
		}

		branches := make([]branch, 0, len(declared)+len(target))
		for _, f := range declared {
			branches = append(branches, branch{fmt.Sprintf("%s → %s", f.Attribute, f.Related), f.Related})
		}
		for _, f := range target {
			branches = append(branches, branch{fmt.Sprintf("← %s.%s", f.Related, f.Attribute), f.Related})
		}

		for i, b := range branches {
			connector, indent := "├── ", "│   "
			if i == len(branches)-1 {
				connector, indent = "└── ", "    "
			}

			if expanded[b.next] {
				lines = append(lines, prefix+connector+b.label+dimStyle.Sprint(" (seen)"))
				continue
			}
			expanded[b.next] = true
			types = append(types, b.next)

			if maxDepth > 0 && depth >= maxDepth {
				lines = append(lines, prefix+connector+b.label+dimStyle.Sprint(" (depth limit)"))
				continue
			}
			lines = append(lines, prefix+connector+b.label)
			if err := walk(b.next, prefix+indent, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, "", 1); err != nil {
		return nil, nil, err
	}
	return lines, types, nil
}

// declaredTree renders a declared schema and the models it names. Unknown
// models are marked, preflight reports them.
func declaredTree(reg *schema.Registry, s *extractor.DeclaredSchema) ([]string, []schema.LogicalType) {
	var (
		lines []string
		types []schema.LogicalType
	)
	seen := make(map[schema.LogicalType]bool)

	describe := func(label string, n *extractor.DeclaredNode) string {
		filter := n.FilterKey
		if filter == "" {
			filter = "all"
		}
		text := fmt.Sprintf("%s: %s [%s]", label, n.ModelName, filter)
		m, err := reg.ResolveName(n.ModelName)
		if err != nil {
			return text + failStyle.Sprint(" (unknown)")
		}
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
		return text
	}

	var walk func(n *extractor.DeclaredNode, prefix string)
	walk = func(n *extractor.DeclaredNode, prefix string) {
		type child struct {
			label string
			node  *extractor.DeclaredNode
		}
		var children []child
		if n.Parent != nil {
			children = append(children, child{"parent", n.Parent})
		}
		for _, d := range n.Dependencies {
			children = append(children, child{d.Name, d.Node})
		}
		for i, c := range children {
			connector, indent := "├── ", "│   "
			if i == len(children)-1 {
				connector, indent = "└── ", "    "
			}
			lines = append(lines, prefix+connector+describe(c.label, c.node))
			walk(c.node, prefix+indent)
		}
	}

	for _, e := range s.Entries {
		lines = append(lines, headerStyle.Sprint(describe(e.Name, e.Node)))
		walk(e.Node, "")
	}
	return lines, types
}
