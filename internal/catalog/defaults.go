package catalog

// Defaults returns the built-in sources. Tables and columns follow the
// connector exports for each tracker.
func Defaults() []Entry {
	return []Entry{
		{
			ID:              "asana",
			Name:            "Asana",
			Kind:            KindTask,
			Table:           "asana_items",
			TimestampColumn: "date",
			SearchColumns:   []string{"task_name", "project", "task_description"},
			Where:           "completed = TRUE",
			Metric:          Metric{Kind: MetricCount, Unit: "tasks"},
			MomentumBasis:   BasisCount,
		},
		{
			ID:              "toggl",
			Name:            "Toggl Track",
			Kind:            KindTime,
			Table:           "toggl_items",
			TimestampColumn: "start_time",
			SearchColumns:   []string{"description", "project_name", "tags"},
			Metric:          Metric{Kind: MetricSum, Column: "duration_minutes", Unit: "minutes"},
			MomentumBasis:   BasisVolume,
		},
		{
			ID:              "habitica",
			Name:            "Habitica",
			Kind:            KindHabit,
			Table:           "habitica_items",
			TimestampColumn: "date_completed",
			SearchColumns:   []string{"item_name", "notes", "tags"},
			Where:           "completed = TRUE",
			Metric:          Metric{Kind: MetricCount, Unit: "completions"},
			MomentumBasis:   BasisCount,
		},
		{
			ID:              "google_fit",
			Name:            "Google Fit",
			Kind:            KindHealth,
			Table:           "google_fit_steps",
			TimestampColumn: "timestamp",
			Labels:          []string{"steps", "walking", "walk", "fitness", "health", "movement"},
			Metric:          Metric{Kind: MetricSum, Column: "steps", Unit: "steps"},
			MomentumBasis:   BasisVolume,
		},
		{
			ID:              "samsung_health",
			Name:            "Samsung Health",
			Kind:            KindHealth,
			Table:           "samsung_health_workouts",
			TimestampColumn: "start_time",
			SearchColumns:   []string{"workout_type", "notes"},
			Labels:          []string{"workout", "workouts", "exercise", "fitness", "training"},
			Metric:          Metric{Kind: MetricSum, Column: "duration_minutes", Unit: "minutes"},
			MomentumBasis:   BasisVolume,
		},
	}
}

// Default builds the catalog from Defaults.
func Default() *Catalog {
	c, err := New(Defaults())
	if err != nil {
		panic("catalog: invalid defaults: " + err.Error())
	}
	return c
}
