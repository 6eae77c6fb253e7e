package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/nyepaul/retireplan/internal/config"
	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/internal/optimizer"
	"github.com/nyepaul/retireplan/internal/output"
	"github.com/nyepaul/retireplan/internal/simulation"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

var (
	configPath    string
	numSims       int
	seed          int64
	outputFormat  string
	chartPath     string
	deterministic bool
	verbose       bool

	discountRate float64
	minClaimAge  int
	maxClaimAge  int

	targetRate float64

	withSS   bool
	withRoth bool
)

// engineLogger adapts phuslu/log to the engine's Logger interface.
type engineLogger struct {
	l *log.Logger
}

func (e engineLogger) Debugf(format string, args ...interface{}) { e.l.Debug().Msgf(format, args...) }
func (e engineLogger) Infof(format string, args ...interface{})  { e.l.Info().Msgf(format, args...) }
func (e engineLogger) Warnf(format string, args ...interface{})  { e.l.Warn().Msgf(format, args...) }
func (e engineLogger) Errorf(format string, args ...interface{}) { e.l.Error().Msgf(format, args...) }

func newLogger() simulation.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return engineLogger{l: &log.Logger{
		Level:  level,
		Writer: &log.ConsoleWriter{ColorOutput: true, Writer: os.Stderr},
	}}
}

func loadScenario(cmd *cobra.Command) (*domain.Scenario, error) {
	scenario, err := config.LoadScenario(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("simulations") {
		scenario.NumSimulations = numSims
	}
	if cmd.Flags().Changed("seed") {
		scenario.Seed = seed
	}
	return scenario, nil
}

func newEngine(scenario *domain.Scenario, logger simulation.Logger) (*simulation.Engine, error) {
	profile, err := config.MarketProfile(scenario.MarketProfileID)
	if err != nil {
		return nil, err
	}
	brackets, err := config.BracketTable(scenario.BracketTableID)
	if err != nil {
		return nil, err
	}
	return simulation.NewEngine(scenario, profile, brackets,
		config.RMDTable(), config.MortalityTable(), logger)
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a Monte Carlo retirement projection",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			scenario, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			engine, err := newEngine(scenario, logger)
			if err != nil {
				return err
			}

			var result *domain.AnalysisResult
			if deterministic {
				result = engine.RunDeterministic()
			} else {
				result, err = engine.RunMonteCarlo(cmd.Context())
				if err != nil {
					return err
				}
			}

			if withSS {
				opt := optimizer.NewSSOptimizer(scenario, config.MortalityTable(),
					decimal.NewFromFloat(discountRate), logger)
				ss, err := opt.Optimize(dateutil.EarliestClaimAge, dateutil.LatestClaimAge)
				if err != nil {
					return err
				}
				result.SSOptimization = ss
			}
			if withRoth {
				brackets, err := config.BracketTable(scenario.BracketTableID)
				if err != nil {
					return err
				}
				profile, err := config.MarketProfile(scenario.MarketProfileID)
				if err != nil {
					return err
				}
				tax := simulation.NewTaxCalculator(brackets, config.RMDTable())
				plan, err := optimizer.NewRothOptimizer(scenario, tax, profile, logger).
					Optimize(decimal.NewFromFloat(targetRate))
				if err != nil {
					return err
				}
				result.RothConversion = plan
			}

			if chartPath != "" {
				if err := output.RenderTimelineChart(result, chartPath); err != nil {
					return err
				}
				logger.Infof("chart written to %s", chartPath)
			}

			if outputFormat == "json" {
				return output.WriteJSON(os.Stdout, result)
			}
			if err := output.FormatAnalysis(os.Stdout, result); err != nil {
				return err
			}
			if result.SSOptimization != nil {
				if err := output.FormatSSOptimization(os.Stdout, result.SSOptimization); err != nil {
					return err
				}
			}
			if result.RothConversion != nil {
				if err := output.FormatRothPlan(os.Stdout, result.RothConversion); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "single projection at mean returns instead of Monte Carlo")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write a percentile-band PNG chart to this path")
	cmd.Flags().BoolVar(&withSS, "with-ss", false, "attach the Social Security claim-age optimization")
	cmd.Flags().BoolVar(&withRoth, "with-roth", false, "attach the Roth conversion ladder")
	cmd.Flags().Float64Var(&discountRate, "discount-rate", 0.03, "real annual discount rate for benefit NPV")
	cmd.Flags().Float64Var(&targetRate, "target-rate", 0.22, "highest ordinary bracket rate to fill")
	return cmd
}

func newOptimizeSSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize-ss",
		Short: "Rank Social Security claim-age strategies by lifetime NPV",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			scenario, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			opt := optimizer.NewSSOptimizer(scenario, config.MortalityTable(),
				decimal.NewFromFloat(discountRate), logger)
			result, err := opt.Optimize(minClaimAge, maxClaimAge)
			if err != nil {
				return err
			}
			if outputFormat == "json" {
				return output.WriteJSON(os.Stdout, result)
			}
			return output.FormatSSOptimization(os.Stdout, result)
		},
	}
	cmd.Flags().Float64Var(&discountRate, "discount-rate", 0.03, "real annual discount rate for benefit NPV")
	cmd.Flags().IntVar(&minClaimAge, "min-age", dateutil.EarliestClaimAge, "earliest claim age to evaluate")
	cmd.Flags().IntVar(&maxClaimAge, "max-age", dateutil.LatestClaimAge, "latest claim age to evaluate")
	return cmd
}

func newOptimizeRothCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize-roth",
		Short: "Build a Roth conversion ladder filling brackets to a target rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			scenario, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			profile, err := config.MarketProfile(scenario.MarketProfileID)
			if err != nil {
				return err
			}
			brackets, err := config.BracketTable(scenario.BracketTableID)
			if err != nil {
				return err
			}
			tax := simulation.NewTaxCalculator(brackets, config.RMDTable())
			opt := optimizer.NewRothOptimizer(scenario, tax, profile, logger)
			plan, err := opt.Optimize(decimal.NewFromFloat(targetRate))
			if err != nil {
				return err
			}
			if outputFormat == "json" {
				return output.WriteJSON(os.Stdout, plan)
			}
			return output.FormatRothPlan(os.Stdout, plan)
		},
	}
	cmd.Flags().Float64Var(&targetRate, "target-rate", 0.22, "highest ordinary bracket rate to fill")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:   "retireplan",
		Short: "Stochastic retirement projection and strategy optimization",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "scenario.yaml", "scenario YAML file")
	root.PersistentFlags().IntVarP(&numSims, "simulations", "n", 0, "override the scenario's simulation count")
	root.PersistentFlags().Int64Var(&seed, "seed", 0, "override the scenario's random seed")
	root.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format: text or json")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAnalyzeCmd(), newOptimizeSSCmd(), newOptimizeRothCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
