package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendergrid/rendergrid/pkg/audit"
	"github.com/rendergrid/rendergrid/pkg/config"
	"github.com/rendergrid/rendergrid/pkg/log"
	"github.com/rendergrid/rendergrid/pkg/metrics"
	"github.com/rendergrid/rendergrid/pkg/scheduler"
	"github.com/rendergrid/rendergrid/pkg/types"
)

// clusterFile is the YAML description of a cluster snapshot: the jobs waiting
// to run and the nodes available to run them.
type clusterFile struct {
	Jobs  []jobSpec  `yaml:"jobs"`
	Nodes []nodeSpec `yaml:"nodes"`
}

type jobSpec struct {
	ID                string          `yaml:"id"`
	Name              string          `yaml:"name"`
	Priority          string          `yaml:"priority"`
	Deadline          time.Time       `yaml:"deadline"`
	EstimatedDuration config.Duration `yaml:"estimated_duration"`
	Progress          float64         `yaml:"progress"`
	Status            string          `yaml:"status"`
	Dependencies      []string        `yaml:"dependencies"`
	CanBePreempted    *bool           `yaml:"can_be_preempted"`
	RequiresGPU       bool            `yaml:"requires_gpu"`
	CPUCores          int             `yaml:"cpu_cores"`
	MemoryGB          float64         `yaml:"memory_gb"`
}

type nodeSpec struct {
	ID                    string  `yaml:"id"`
	Status                string  `yaml:"status"`
	CurrentJobID          string  `yaml:"current_job_id"`
	CPUCores              int     `yaml:"cpu_cores"`
	MemoryGB              float64 `yaml:"memory_gb"`
	GPUCount              int     `yaml:"gpu_count"`
	GPUModel              string  `yaml:"gpu_model"`
	PowerEfficiencyRating float64 `yaml:"power_efficiency_rating"`
}

func (s jobSpec) toJob() *types.Job {
	preemptible := true
	if s.CanBePreempted != nil {
		preemptible = *s.CanBePreempted
	}
	status := types.JobStatus(s.Status)
	if s.Status == "" {
		status = types.JobStatusPending
	}
	return &types.Job{
		ID:                   s.ID,
		Name:                 s.Name,
		Priority:             types.JobPriority(s.Priority),
		Deadline:             s.Deadline,
		EstimatedDuration:    s.EstimatedDuration.Std(),
		Progress:             s.Progress,
		Status:               status,
		Dependencies:         s.Dependencies,
		CanBePreempted:       preemptible,
		RequiresGPU:          s.RequiresGPU,
		CPURequirements:      s.CPUCores,
		MemoryRequirementsGB: s.MemoryGB,
	}
}

func (s nodeSpec) toNode() *types.Node {
	status := types.NodeStatus(s.Status)
	if s.Status == "" {
		status = types.NodeStatusOnline
	}
	return &types.Node{
		ID:           s.ID,
		Status:       status,
		CurrentJobID: s.CurrentJobID,
		Capabilities: types.NodeCapabilities{
			CPUCores: s.CPUCores,
			MemoryGB: s.MemoryGB,
			GPUCount: s.GPUCount,
			GPUModel: s.GPUModel,
		},
		PowerEfficiencyRating: s.PowerEfficiencyRating,
	}
}

func loadCluster(path string) ([]*types.Job, []*types.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cluster file: %w", err)
	}
	var cf clusterFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse cluster file: %w", err)
	}

	jobs := make([]*types.Job, 0, len(cf.Jobs))
	for _, s := range cf.Jobs {
		jobs = append(jobs, s.toJob())
	}
	nodes := make([]*types.Node, 0, len(cf.Nodes))
	for _, s := range cf.Nodes {
		nodes = append(nodes, s.toNode())
	}
	return jobs, nodes, nil
}

// buildAuditLogger assembles the audit pipeline: always log through zerolog,
// and journal to disk when a journal path is configured.
func buildAuditLogger(cfg *config.Config) (audit.Logger, func(), error) {
	sink := audit.NewZerologSink(log.WithComponent("audit"))
	if cfg.Audit.JournalPath == "" {
		return sink, func() {}, nil
	}

	journal, err := audit.OpenJournal(cfg.Audit.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit journal: %w", err)
	}
	return audit.Fanout{sink, journal}, func() { _ = journal.Close() }, nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run a scheduling pass over a cluster snapshot",
	Long: `Run one deadline-aware scheduling pass over the jobs and nodes
described in a cluster YAML file and print the resulting assignments.

With --watch, keeps re-reading the file and scheduling at the configured
interval, serving Prometheus metrics if a listen address is set.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringP("cluster", "c", "", "Cluster snapshot YAML file (required)")
	scheduleCmd.Flags().Bool("watch", false, "Re-run the pass at the configured interval")
	_ = scheduleCmd.MarkFlagRequired("cluster")

	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	clusterPath, _ := cmd.Flags().GetString("cluster")
	watch, _ := cmd.Flags().GetBool("watch")

	auditLogger, closeAudit, err := buildAuditLogger(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	sched := scheduler.NewJobScheduler(scheduler.Config{
		DeadlineSafetyMargin:        cfg.Scheduler.DeadlineSafetyMargin.Std(),
		DependencyProgressThreshold: cfg.Scheduler.DependencyProgressThreshold,
		EnablePreemption:            cfg.Scheduler.EnablePreemption,
	}, auditLogger, metrics.NewPerformanceMonitor())

	pass := func() error {
		jobs, nodes, err := loadCluster(clusterPath)
		if err != nil {
			return err
		}
		assignments := sched.ScheduleJobs(jobs, nodes)
		printAssignments(assignments)
		return nil
	}

	if !watch {
		return pass()
	}

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
		fmt.Printf("Serving metrics on %s/metrics\n", cfg.Metrics.ListenAddr)
	}

	ticker := time.NewTicker(cfg.Scheduler.Interval.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if err := pass(); err != nil {
		return err
	}
	for {
		select {
		case <-ticker.C:
			if err := pass(); err != nil {
				log.Errorf("scheduling pass: %v", err)
			}
		case <-sigCh:
			fmt.Println("\nShutting down...")
			return nil
		}
	}
}

func printAssignments(assignments map[string]string) {
	if len(assignments) == 0 {
		fmt.Println("No jobs assigned this pass.")
		return
	}
	jobIDs := make([]string, 0, len(assignments))
	for jobID := range assignments {
		jobIDs = append(jobIDs, jobID)
	}
	sort.Strings(jobIDs)

	fmt.Printf("Assigned %d job(s):\n", len(assignments))
	for _, jobID := range jobIDs {
		fmt.Printf("  %s -> %s\n", jobID, assignments[jobID])
	}
}
