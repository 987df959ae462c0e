package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"phonostat/adapters/ingest"
	"phonostat/adapters/report"
	"phonostat/app"
	"phonostat/domain/core"
	"phonostat/domain/result"
	"phonostat/domain/spec"
	"phonostat/internal"
	"phonostat/internal/config"
	"phonostat/internal/container"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "phonostat",
		Short: "Phonetic feature extraction and statistical inference engine",
	}

	rootCmd.AddCommand(
		newExtractCmd(),
		newAnalyzeCmd(),
		newMetaCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [names...]",
		Short: "Extract phonetic feature vectors for names",
		Long: `Extract the fixed feature vector for each given name and print them
as JSON. Extraction is pure: the same name and extractor version always
produce the same vector.

Example: phonostat extract "Acme Corp" "Zyxwv" "123"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bootstrap("")
			if err != nil {
				return err
			}
			defer c.Close()

			vectors := make([]interface{}, len(args))
			for i, name := range args {
				vectors[i] = c.Service.Extract(name)
			}
			return emitJSON(map[string]interface{}{
				"extractor_version": c.Service.ExtractorVersion(),
				"vectors":           vectors,
			})
		},
	}
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var seed int64
	var domain string
	var specsFile string
	var correction string
	var excelOut string

	cmd := &cobra.Command{
		Use:   "analyze [data-file]",
		Short: "Run a test battery over a CSV or XLSX entity file",
		Long: `Build the feature table from a data file, execute the spec battery,
apply multiple-comparisons correction, and print the report as JSON.

The data file needs a "name" column; "cov_"-prefixed columns become
covariates and all other columns are outcome metrics. The spec file is a
JSON array of test specs.

Example: phonostat analyze startups.csv --specs specs.json --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadSpecs(specsFile)
			if err != nil {
				return err
			}

			c, err := bootstrap(args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			method := correction
			if method == "" {
				method = c.Config.Engine.CorrectionMethod
			}
			res, err := c.Service.Run(cmd.Context(), app.AnalysisRequest{
				Domain:     core.DomainKey(domain),
				Specs:      specs,
				Correction: spec.CorrectionMethod(method),
				Alpha:      c.Config.Engine.Alpha,
				Seed:       seed,
			})
			if err != nil {
				return err
			}

			doc := report.Document{
				RunID:   res.RunID.String(),
				Build:   report.FromBuildReport(*res.Build),
				Batches: []report.BatchReport{report.FromBatch(res.Batch)},
			}
			if excelOut != "" {
				if err := report.NewExcelExporter().Export(doc, excelOut); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "workbook written to %s\n", excelOut)
			}
			return report.Emit(os.Stdout, doc)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Base seed for deterministic resampling")
	cmd.Flags().StringVar(&domain, "domain", "default", "Domain key for the batch")
	cmd.Flags().StringVar(&specsFile, "specs", "", "JSON file with an array of test specs (required)")
	cmd.Flags().StringVar(&correction, "correction", "", "Correction method: bonferroni or fdr_bh")
	cmd.Flags().StringVar(&excelOut, "xlsx", "", "Also write the report to an .xlsx workbook")
	_ = cmd.MarkFlagRequired("specs")

	return cmd
}

func newMetaCmd() *cobra.Command {
	var ciLevel float64
	var moderators string

	cmd := &cobra.Command{
		Use:   "meta [effects-file]",
		Short: "Pool per-domain effect sizes into a meta-analysis",
		Long: `Read a JSON meta-analysis input file and print the pooled record.

The input file holds {"feature_name": ..., "effects": [{"domain": ...,
"effect_size": ..., "se": ...}], "domain_covariates": {...}}.

Example: phonostat meta effects.json --moderators market_size,age`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read effects file: %w", err)
			}
			var req metaInput
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("failed to parse effects file: %w", err)
			}

			c, err := bootstrap("")
			if err != nil {
				return err
			}
			defer c.Close()

			var mods []string
			if moderators != "" {
				mods = strings.Split(moderators, ",")
			}
			covariates := make(map[core.DomainKey]map[string]float64, len(req.Covariates))
			for k, v := range req.Covariates {
				covariates[core.DomainKey(k)] = v
			}

			rec, err := c.Service.MetaAnalyze(cmd.Context(), app.MetaRequest{
				FeatureName: req.FeatureName,
				Effects:     req.Effects,
				CILevel:     ciLevel,
				Moderators:  mods,
				Covariates:  covariates,
			})
			if err != nil {
				return err
			}
			return emitJSON(report.FromMeta(*rec))
		},
	}

	cmd.Flags().Float64Var(&ciLevel, "ci-level", 0.95, "Confidence level for the pooled interval")
	cmd.Flags().StringVar(&moderators, "moderators", "", "Comma-separated moderator covariate names")

	return cmd
}

type metaInput struct {
	FeatureName string                        `json:"feature_name"`
	Effects     []result.DomainEffect         `json:"effects"`
	Covariates  map[string]map[string]float64 `json:"domain_covariates,omitempty"`
}

func bootstrap(dataFile string) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var source *ingest.FileSource
	if dataFile != "" {
		source = ingest.NewFileSource(dataFile, internal.DefaultLogger)
	}
	if source != nil {
		return container.New(cfg, source)
	}
	return container.New(cfg, nil)
}

func loadSpecs(path string) ([]spec.TestSpec, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read specs file: %w", err)
	}
	var specs []spec.TestSpec
	if err := json.Unmarshal(payload, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse specs file: %w", err)
	}
	return specs, nil
}

func emitJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
