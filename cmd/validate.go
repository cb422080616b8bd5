package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/iati-activity-converter/internal/validation"
	"github.com/ginjaninja78/iati-activity-converter/pkg/utils"
)

var validateInputs inputFlags

// reportDir, when set, receives an error log of the audit findings.
var reportDir string

// strict turns audit warnings into a failing exit status.
var strict bool

// validateCmd checks input tables without converting.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check input tables against the dataset revision",
	Long: `The validate command loads the configuration and input tables, checks that
every required column is present, and audits cells that would fall back to
default values during conversion. Nothing is converted.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateInputs.register(validateCmd)
	validateCmd.Flags().StringVar(&reportDir, "report", "", "Directory to write an error log of audit findings")
	validateCmd.Flags().BoolVar(&strict, "strict", false, "Fail when the audit finds any issue")
}

func runValidate() error {
	_, ds, logger, err := setup(&validateInputs)
	if err != nil {
		return err
	}

	inputs, files, err := loadInputs(&validateInputs, ds)
	if err != nil {
		return err
	}

	if err := validation.CheckInputs(ds, inputs); err != nil {
		return fmt.Errorf("input tables do not match revision %s: %w", ds.Revision, err)
	}
	fmt.Printf("Structure OK: %d table(s) match revision %s\n", len(files), ds.Revision)

	result := validation.NewAuditor(ds).Audit(inputs)
	fmt.Printf("Rows audited: %d\n\n", result.RowsAudited)
	fmt.Println(validation.FormatIssues(result.Issues))

	if reportDir != "" {
		path, err := utils.WriteErrorLog(validation.LogEntries(result.Issues), reportDir, time.Now())
		if err != nil {
			return err
		}
		if path != "" {
			logger.Info("error log written", "path", path)
		}
	}

	if strict && len(result.Issues) > 0 {
		return fmt.Errorf("audit found %d issue(s)", len(result.Issues))
	}
	return nil
}
