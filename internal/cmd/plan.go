package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/pkg/models"
)

// planCmd groups plan-authoring helpers that don't require a full run.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect and validate plan files",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Validate a plan without running it",
	Long: `Validate loads a plan and builds its dependency graph, reporting the
same errors run would fail with — an empty id, a duplicate id, an unknown
complexity tier, a missing dependency, or a dependency cycle — without
provisioning any workspace or invoking an agent.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanValidate,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	planPath := args[0]
	data, err := os.ReadFile(planPath)
	if err != nil {
		return fmt.Errorf("read plan: %w", err)
	}

	plan, err := dag.LoadPlan(planPath, data)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	graph, err := dag.Build(plan)
	if err != nil {
		var invalid *models.PlanInvalidError
		if errors.As(err, &invalid) {
			return fmt.Errorf("plan %q is invalid: %s", plan.Name, invalid.Error())
		}
		return err
	}

	order, err := graph.TopologicalOrder()
	if err != nil {
		return fmt.Errorf("plan %q is invalid: %s", plan.Name, err)
	}

	fmt.Printf("plan %q is valid: %d tasks, execution order:\n", plan.Name, len(order))
	for i, id := range order {
		fmt.Printf("  %d. %s\n", i+1, id)
	}
	return nil
}
