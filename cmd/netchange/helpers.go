package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/netchange/pkg/audit"
	"github.com/newtron-network/netchange/pkg/changeset"
	"github.com/newtron-network/netchange/pkg/device"
	"github.com/newtron-network/netchange/pkg/inventory"
	"github.com/newtron-network/netchange/pkg/metrics"
	"github.com/newtron-network/netchange/pkg/orchestrator"
	"github.com/newtron-network/netchange/pkg/settings"
	"github.com/newtron-network/netchange/pkg/snapshot"
	"github.com/newtron-network/netchange/pkg/util"
)

// appState holds the resources opened for one command. They are closed
// by main after the command returns.
type appState struct {
	store    snapshot.Store
	auditLog *audit.FileLogger
	sinks    audit.Tee
	metrics  *metrics.Recorder
}

func (a *appState) close() {
	if a.metrics != nil && userSettings != nil && userSettings.MetricsTextfile != "" {
		if err := a.metrics.WriteTextfile(userSettings.MetricsTextfile); err != nil {
			util.Warnf("Could not write metrics textfile: %v", err)
		}
	}
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			util.Warnf("Closing audit sinks: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			util.Warnf("Closing snapshot store: %v", err)
		}
	}
}

// openStore opens the configured snapshot store once.
func openStore() (snapshot.Store, error) {
	if app.store != nil {
		return app.store, nil
	}
	st, err := snapshot.Open(userSettings)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	app.store = st
	return st, nil
}

func rotationConfig(s *settings.Settings) audit.RotationConfig {
	sizeMB, backups := s.AuditMaxSizeMB, s.AuditMaxBackups
	if sizeMB == 0 {
		sizeMB = 10
	}
	if backups == 0 {
		backups = 10
	}
	return audit.RotationConfig{MaxSize: int64(sizeMB) * 1024 * 1024, MaxBackups: backups}
}

// openAudit opens the audit log and, when a broker is configured, the
// MQTT publisher. Failures only disable the affected sink.
func openAudit() audit.Sink {
	if app.sinks != nil {
		return app.sinks
	}
	logger, err := audit.NewFileLogger(userSettings.GetAuditLogPath(), rotationConfig(userSettings))
	if err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
	} else {
		app.auditLog = logger
		app.sinks = append(app.sinks, logger)
	}

	if userSettings.MQTTBroker != "" {
		pub, err := audit.NewMQTTPublisher(audit.MQTTConfig{
			Broker:      userSettings.MQTTBroker,
			TopicPrefix: userSettings.GetMQTTTopicPrefix(),
		})
		if err != nil {
			util.Warnf("Could not connect to MQTT broker %s: %v", userSettings.MQTTBroker, err)
		} else {
			app.sinks = append(app.sinks, pub)
		}
	}
	if len(app.sinks) == 0 {
		return nil
	}
	return app.sinks
}

// newOrchestrator wires the connector, store, audit and metrics.
func newOrchestrator(approver orchestrator.Approver) (*orchestrator.Orchestrator, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	timeout := userSettings.CallTimeout()
	o := orchestrator.New(device.NewConnector(timeout), st, approver)
	o.Out = os.Stdout
	o.CallTimeout = timeout
	o.Audit = openAudit()
	if app.metrics == nil {
		app.metrics = metrics.NewRecorder()
	}
	o.Metrics = app.metrics
	return o, nil
}

// loadInventory loads the inventory and applies --devices. Any failure
// is fatal to the command.
func loadInventory() (*inventory.Inventory, error) {
	inv, err := inventory.Load(userSettings.GetInventory())
	if err != nil {
		return nil, err
	}
	inv = inv.Filter(util.SplitCommaSeparated(devicesFlag))
	if err := orchestrator.CheckInventory(inv); err != nil {
		return nil, fmt.Errorf("no devices selected: %w", err)
	}
	return inv, nil
}

// loadChangeset loads a change set file. A missing default file returns
// nil so the role is skipped; a missing file named by flag is an error.
func loadChangeset(cmd *cobra.Command, flag, path string, mode changeset.Mode) (*changeset.ChangeSet, error) {
	cs, err := changeset.Load(path, mode)
	if err == nil {
		return cs, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed(flag) {
		util.Warnf("Changeset %s not found, skipping", path)
		return nil, nil
	}
	return nil, err
}

// addApprovalFlags registers --yes/--no on a command that commits.
func addApprovalFlags(cmd *cobra.Command, yes, no *bool) {
	cmd.Flags().BoolVarP(yes, "yes", "y", false, "Commit every non-empty diff without prompting")
	cmd.Flags().BoolVar(no, "no", false, "Discard every diff without prompting (review only)")
	cmd.MarkFlagsMutuallyExclusive("yes", "no")
}

func approverFor(yes, no bool) orchestrator.Approver {
	switch {
	case yes:
		return orchestrator.StaticApprover(orchestrator.DecisionCommit)
	case no:
		return orchestrator.StaticApprover(orchestrator.DecisionDiscard)
	}
	return orchestrator.NewTerminalApprover()
}
