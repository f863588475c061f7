package stepgraph

// MonthlyTemplate returns the fixed step set instantiated for every new
// batch's close workflow. Ids are stable across batches; per-batch state
// (status, owner, due dates, extra tasks) diverges after instantiation.
func MonthlyTemplate() []*Step {
	return []*Step{
		{
			ID:            "data-load",
			Name:          "Source Data Load",
			EstimatedDays: 1,
			Tasks: []Task{
				{ID: "data-load-task-1", Name: "Ingest position files"},
				{ID: "data-load-task-2", Name: "Ingest transaction files"},
			},
		},
		{
			ID:            "data-validation",
			Name:          "Data Validation",
			Dependencies:  []string{"data-load"},
			EstimatedDays: 1,
			Tasks: []Task{
				{ID: "data-validation-task-1", Name: "Run validation rules"},
				{ID: "data-validation-task-2", Name: "Resolve validation exceptions"},
			},
		},
		{
			ID:            "reconciliation",
			Name:          "Holdings Reconciliation",
			Dependencies:  []string{"data-validation"},
			EstimatedDays: 2,
			Tasks: []Task{
				{ID: "reconciliation-task-1", Name: "Match custodian balances"},
				{ID: "reconciliation-task-2", Name: "Clear reconciliation breaks"},
			},
		},
		{
			ID:            "adjustments",
			Name:          "Manual Adjustments",
			Dependencies:  []string{"data-validation"},
			EstimatedDays: 1,
			Tasks: []Task{
				{ID: "adjustments-task-1", Name: "Book period-end adjustments"},
			},
		},
		{
			ID:            "report-generation",
			Name:          "Report Generation",
			Dependencies:  []string{"reconciliation", "adjustments"},
			EstimatedDays: 2,
			Tasks: []Task{
				{ID: "report-generation-task-1", Name: "Generate draft reports"},
				{ID: "report-generation-task-2", Name: "Verify report totals"},
			},
		},
		{
			ID:            "management-review",
			Name:          "Management Review",
			Dependencies:  []string{"report-generation"},
			EstimatedDays: 1,
			Tasks: []Task{
				{ID: "management-review-task-1", Name: "Review sign-off checklist"},
			},
		},
		{
			ID:            "publish",
			Name:          "Publish & Archive",
			Dependencies:  []string{"management-review"},
			EstimatedDays: 1,
			Tasks: []Task{
				{ID: "publish-task-1", Name: "Distribute final reports"},
				{ID: "publish-task-2", Name: "Archive batch artifacts"},
			},
		},
	}
}
