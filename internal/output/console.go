package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

// FormatAnalysis writes a human-readable summary of a Monte Carlo run.
func FormatAnalysis(w io.Writer, result *domain.AnalysisResult) error {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Scenario: %s\n", result.ScenarioName))
	b.WriteString(fmt.Sprintf("Run: %s  (%d simulations, seed %d)\n",
		result.RunID, result.NumSimulations, result.Seed))
	b.WriteString(strings.Repeat("-", 64) + "\n")
	b.WriteString(fmt.Sprintf("Starting portfolio:     %s\n", money(result.StartingPortfolio)))
	b.WriteString(fmt.Sprintf("Annual withdrawal need: %s\n", money(result.AnnualWithdrawalNeed)))
	b.WriteString(fmt.Sprintf("Success rate:           %s%%\n", result.SuccessRate.StringFixed(1)))
	b.WriteString(fmt.Sprintf("Median ending balance:  %s\n", money(result.MedianEndingBalance)))
	b.WriteString(fmt.Sprintf("Failed trials:          %d\n", result.FailedTrials))

	if len(result.Timeline) > 0 {
		b.WriteString("\nNet worth percentiles by year:\n")
		b.WriteString(fmt.Sprintf("%-6s  %16s  %16s  %16s\n", "Year", "P5", "P50", "P95"))
		for _, pt := range result.Timeline {
			b.WriteString(fmt.Sprintf("%-6d  %16s  %16s  %16s\n",
				pt.Year, money(pt.P5), money(pt.P50), money(pt.P95)))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatSSOptimization writes ranked claiming strategies.
func FormatSSOptimization(w io.Writer, result *domain.SSOptimization) error {
	var b strings.Builder

	if len(result.Combinations) == 0 {
		b.WriteString("No claim-age combinations to evaluate.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(fmt.Sprintf("Social Security claiming strategies (discount rate %s):\n\n",
		result.DiscountRate.StringFixed(3)))
	for i, c := range result.Combinations {
		marker := "  "
		if i == 0 {
			marker = "* "
		}
		b.WriteString(fmt.Sprintf("%s%-40s  NPV %s\n", marker, claimAgesLabel(c), money(c.NPV)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FormatRothPlan writes a conversion ladder.
func FormatRothPlan(w io.Writer, plan *domain.RothConversionPlan) error {
	var b strings.Builder

	if !plan.HasOpportunity() {
		b.WriteString("No Roth conversion opportunity in this scenario.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(fmt.Sprintf("Roth conversion ladder (filling to the %s%% bracket):\n\n",
		plan.TargetBracketRate.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	b.WriteString(fmt.Sprintf("%-6s  %16s  %16s\n", "Year", "Convert", "Tax cost"))
	for _, c := range plan.Conversions {
		b.WriteString(fmt.Sprintf("%-6d  %16s  %16s\n", c.Year, money(c.Amount), money(c.TaxCost)))
	}
	b.WriteString(fmt.Sprintf("\nTotal converted: %s, total tax cost: %s\n",
		money(plan.TotalConverted), money(plan.TotalTaxCost)))

	_, err := io.WriteString(w, b.String())
	return err
}

func claimAgesLabel(c domain.ClaimCombination) string {
	parts := make([]string, 0, len(c.ClaimAges))
	for name, age := range c.ClaimAges {
		parts = append(parts, fmt.Sprintf("%s@%d", name, age))
	}
	// Map order is random; sort for stable output.
	for i := 0; i < len(parts); i++ {
		for j := i + 1; j < len(parts); j++ {
			if parts[j] < parts[i] {
				parts[i], parts[j] = parts[j], parts[i]
			}
		}
	}
	return strings.Join(parts, ", ")
}

func money(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().Round(0).String()
	// Insert thousands separators.
	var out strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	if neg {
		return "-$" + out.String()
	}
	return "$" + out.String()
}
