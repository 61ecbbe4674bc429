package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/util"
	"github.com/newtron-network/netchange/pkg/verify"
)

var (
	verifyPolicyFile string
	verifyObserve    bool
	verifyStrict     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify devices against the policy",
	Long: `Read every device and judge it against the verification policy.

Switches are judged by whether the policy marker line is present or
absent, per the device's entry in the expectation table; a switch with
no entry is reported as a warning. Routers are judged by the state of
the policy interface.

Verification is read-only.

Examples:
  netchange verify
  netchange verify --policy lab-policy.yaml --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := loadPolicy(cmd)
		if err != nil {
			return err
		}
		inv, err := loadInventory()
		if err != nil {
			return err
		}
		o, err := newOrchestrator(orchestrator.StaticApprover(orchestrator.DecisionDiscard))
		if err != nil {
			return err
		}

		engine := verify.NewEngine(o, verify.NewChecker(policy))
		var report *verify.Report
		if verifyObserve {
			report, err = engine.Observe(cmd.Context(), inv) //nolint:staticcheck // explicit opt-in
		} else {
			report, err = engine.Run(cmd.Context(), inv)
		}
		if report != nil {
			report.WriteSummary(os.Stdout)
		}
		if err != nil {
			return err
		}
		if verifyStrict && report.HasErrors() {
			return fmt.Errorf("verification failed: %s", report.SummaryLine())
		}
		return nil
	},
}

// loadPolicy reads the policy file. Without --policy, a missing default
// file falls back to the built-in lab policy.
func loadPolicy(cmd *cobra.Command) (*verify.Policy, error) {
	path := orDefault(verifyPolicyFile, userSettings.GetPolicy())
	policy, err := verify.LoadPolicy(path)
	if err == nil {
		return policy, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("policy") {
		util.Warnf("Policy %s not found, using the built-in policy", path)
		return verify.DefaultPolicy(), nil
	}
	return nil, err
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPolicyFile, "policy", "", "Verification policy YAML (default policy.yaml)")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "Exit non-zero when any device fails verification")
	verifyCmd.Flags().BoolVar(&verifyObserve, "observe-only", false, "Report observed state without judging it")
	verifyCmd.Flags().MarkDeprecated("observe-only", "observed state cannot show whether a rollback took effect; use the judged default")
}
