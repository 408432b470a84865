package main

import (
	"fmt"
	"strings"

	"github.com/YuminosukeSato/mlpipe/internal/evaluate"
)

const ruleWidth = 78

// printLeaderboard prints successful candidates by test R² and then the
// failed ones.
func (a *app) printLeaderboard(r *evaluate.Report) {
	w := a.out
	fmt.Fprintln(w, a.cyan("\nModel comparison (test set)"))
	fmt.Fprintln(w, strings.Repeat("─", ruleWidth))
	fmt.Fprintf(w, "%-20s %12s %12s %12s %12s\n", "Model", "MAE", "RMSE", "R2", "Train R2")
	fmt.Fprintln(w, strings.Repeat("─", ruleWidth))

	for _, s := range r.Leaderboard() {
		name := fmt.Sprintf("%-20s", s.Name)
		if s.Name == r.Best {
			name = a.green(name)
		}
		fmt.Fprintf(w, "%s %12.4f %12.4f %12.4f %12.4f\n", name, s.Test.MAE, s.Test.RMSE, s.Test.R2, s.Train.R2)
	}
	for _, s := range r.Scores {
		if !s.OK() {
			fmt.Fprintf(w, "%s %v\n", a.red(fmt.Sprintf("%-20s", s.Name)), s.Err)
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", ruleWidth))
	fmt.Fprintf(w, "%s Best model: %s (R2: %.4f)\n", a.green("★"), r.Best, r.BestR2)
}
