// cmd/tools/flow-registry/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/database"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/wizard"
	"application-wizard/pkg/registry"

	"github.com/redis/go-redis/v9"
)

// attrFlags collects repeated -set key=value flags.
type attrFlags map[string]string

func (a attrFlags) String() string {
	parts := make([]string, 0, len(a))
	for k, v := range a {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (a attrFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	a[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	walkCmd := flag.NewFlagSet("walk", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Path to registry file (empty checks the built-in registry)")
	listPath := listCmd.String("path", "", "Path to registry file (empty uses the built-in registry)")

	walkPath := walkCmd.String("path", "", "Path to registry file (empty uses the built-in registry)")
	walkIntent := walkCmd.String("intent", "", "Applicant intent (e.g., hirePurchase)")
	walkEmployer := walkCmd.String("employer", "", "Employer category used to resolve the variant")
	walkAccount := walkCmd.Bool("hasAccount", false, "Applicant already holds an account")
	walkAttrs := attrFlags{}
	walkCmd.Var(walkAttrs, "set", "Extra step attribute key=value (repeatable)")

	exportOut := exportCmd.String("out", "configs/flows.json", "Where to write the built-in registry")

	runConfig := runCmd.String("config", "", "Config file (empty searches ./configs)")
	runScriptPath := runCmd.String("script", "", "JSON file with the start request and step outputs")
	runDurable := runCmd.Bool("durable", false, "Keep session snapshots in the configured Redis")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := wizard.LoadFlows(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d flows.\n", len(reg.Flows))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg := mustLoad(*listPath)
		listFlows(reg)

	case "walk":
		walkCmd.Parse(os.Args[2:])
		reg := mustLoad(*walkPath)
		if err := walkFlow(reg, *walkIntent, *walkEmployer, *walkAccount, walkAttrs); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := exportRegistry(wizard.BuiltinFlows(), *exportOut); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in registry to %s\n", *exportOut)

	case "run":
		runCmd.Parse(os.Args[2:])
		if err := runSession(*runConfig, *runScriptPath, *runDurable); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func mustLoad(path string) *registry.FlowRegistry {
	reg, err := wizard.LoadFlows(path)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}
	return reg
}

func listFlows(reg *registry.FlowRegistry) {
	fmt.Printf("Registry %s (%d flows)\n", reg.Version, len(reg.Flows))
	for _, f := range reg.Flows {
		marker := ""
		if f.Default {
			marker = " [default]"
		}
		fmt.Printf("\n%s%s - %s\n", f.ID, marker, f.DisplayName)
		fmt.Printf("  intents: %s\n", strings.Join(f.Intents, ", "))
		if f.Variant != "" {
			fmt.Printf("  variant: %s\n", f.Variant)
		}
		fmt.Printf("  steps:   %s\n", strings.Join(f.StepNames(), " > "))
		if attrs := f.Attributes(); len(attrs) > 0 {
			fmt.Printf("  branches on: %s\n", strings.Join(attrs, ", "))
		}
	}
}

func walkFlow(reg *registry.FlowRegistry, intent, employer string, hasAccount bool, extra attrFlags) error {
	flow, ok := reg.FlowForIntent(intent)
	if !ok {
		return fmt.Errorf("no flow for intent %q", intent)
	}

	variant := flow.Variant
	if variant == "" {
		variant = reg.ResolveVariant(employer, hasAccount)
	}

	attrs := map[string]string{
		"intent":     intent,
		"employer":   employer,
		"variant":    variant,
		"hasAccount": fmt.Sprintf("%t", hasAccount),
	}
	for k, v := range extra {
		attrs[k] = v
	}

	fmt.Printf("Flow %s, variant %s\n", flow.ID, variant)
	for i, step := range flow.Sequence(attrs) {
		check := ""
		if step.Validate {
			check = " (validated)"
		}
		fmt.Printf("  %2d. %s%s\n", i+1, step.Name, check)
	}
	return nil
}

func exportRegistry(reg *registry.FlowRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func runSession(configPath, scriptPath string, durable bool) error {
	if scriptPath == "" {
		return fmt.Errorf("-script is required")
	}
	script, err := loadScript(scriptPath)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var client *redis.Client
	if durable {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			return err
		}
		client = rdb.GetClient()
	}

	rt, err := newSessionRuntime(cfg, client, log)
	if err != nil {
		return err
	}
	defer rt.syncer.Cancel()
	return rt.run(ctx, script, os.Stdout)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func help() {
	fmt.Print(`
Usage: flow-registry <command> [flags]

Commands:
  validate  Validate a registry file (or the built-in registry)
  list      Print every flow with its intents and steps
  walk      Print the step sequence an applicant would see
  export    Write the built-in registry to a file for editing
  run       Drive one application session from a script of step outputs
  help      Show this help message

Examples:
  flow-registry validate -path configs/flows.json
  flow-registry list
  flow-registry walk -intent hirePurchase -employer government-ssb -set creditType=PDC
  flow-registry export -out configs/flows.json
  flow-registry run -script session.json -durable

Use 'flow-registry <command> -h' for more information about a command.

`)
}
