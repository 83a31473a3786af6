package decompose

import (
	"fmt"
	"strings"
)

// systemPrompt enforces the JSON output contract for decomposition.
const systemPrompt = `You are a planning assistant that breaks software delivery instructions into independent sub-tasks. Each sub-task should be sized for a single engineer to complete.

Return ONLY a JSON object with this exact structure (no other text):
{
  "subTasks": [
    {
      "title": "Short task title",
      "description": "Detailed task description",
      "acceptanceCriteria": ["Criterion 1", "Criterion 2"],
      "estimatedEffort": "small|medium|large"
    }
  ]
}

Rules:
- Prefer sub-tasks that can run in parallel; avoid artificial ordering.
- When a sub-task genuinely requires another, say so in its description using the phrase "after <other task title>" or "depends on <other task title>".
- Titles must be unique within the plan.`

// buildUserPrompt embeds the project facts and the instruction.
func buildUserPrompt(instruction string, pctx Context, opts Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", pctx.ProjectID)
	if len(pctx.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(pctx.TechStack, ", "))
	}
	if len(pctx.Files) > 0 {
		b.WriteString("Relevant files:\n")
		for _, f := range pctx.Files {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	if pctx.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", pctx.Notes)
	}

	fmt.Fprintf(&b, "\nProduce between %d and %d sub-tasks.\n", opts.MinSubTasks, opts.MaxSubTasks)
	if opts.IncludeEstimates {
		b.WriteString("Include an effort estimate for every sub-task.\n")
	}
	if opts.GenerateAcceptanceCriteria {
		b.WriteString("Include concrete acceptance criteria for every sub-task.\n")
	}

	fmt.Fprintf(&b, "\nInstruction:\n%s\n", instruction)
	return b.String()
}
