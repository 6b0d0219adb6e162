package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eleven-am/flowcore/internal/adapters/observability"
	"github.com/eleven-am/flowcore/internal/adapters/schema"
	"github.com/eleven-am/flowcore/internal/core"
	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

type cli struct {
	viper *viper.Viper
}

func newRootCommand() *cobra.Command {
	c := &cli{viper: viper.New()}

	root := &cobra.Command{
		Use:           "flowcore",
		Short:         "Run and inspect human-in-the-loop workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := bindFlags(root, c.viper); err != nil {
		panic(err)
	}

	root.AddCommand(
		c.validateCommand(),
		c.runCommand(),
		c.resumeCommand(),
		c.cancelCommand(),
		c.suspendCommand(),
		c.reactivateCommand(),
		c.showCommand(),
		c.serveCommand(),
	)
	return root
}

// open builds a Core from the layered configuration. The caller closes it.
func (c *cli) open(cmd *cobra.Command) (*core.Core, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(c.viper, path)
	if err != nil {
		return nil, err
	}
	logger := core.NewLogger(config.Logging, cmd.ErrOrStderr())
	return core.New(config, logger)
}

func (c *cli) validateCommand() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a schema document without storing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			definition, err := schema.LoadFile(schemaPath)
			if err != nil {
				return err
			}

			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			result := fc.ValidateDefinition(cmd.Context(), definition)
			if !result.Valid {
				for _, problem := range result.Errors {
					fmt.Fprintln(cmd.OutOrStdout(), "-", problem)
				}
				return fmt.Errorf("schema %s has %d problem(s)", definition.ID, len(result.Errors))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema %s is valid\n", definition.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (c *cli) runCommand() *cobra.Command {
	var (
		schemaPath    string
		schemaID      string
		vars          []string
		startedBy     string
		correlationID string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register a schema if given and start an instance of it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			ctx := cmd.Context()
			if schemaPath != "" {
				definition, err := schema.LoadFile(schemaPath)
				if err != nil {
					return err
				}
				if err := fc.RegisterSchema(ctx, definition); err != nil {
					return err
				}
				if schemaID == "" {
					schemaID = definition.ID
				}
			}
			if schemaID == "" {
				return fmt.Errorf("one of --schema or --schema-id is required")
			}

			instance, err := fc.StartWorkflow(ctx, ports.StartRequest{
				SchemaID:         schemaID,
				StartedBy:        startedBy,
				CorrelationID:    correlationID,
				InitialVariables: variables,
			})
			return printOutcome(cmd.OutOrStdout(), instance, err)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file to register before starting")
	cmd.Flags().StringVar(&schemaID, "schema-id", "", "id of an already registered schema")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "initial variable as key=value; values are read as JSON when possible")
	cmd.Flags().StringVar(&startedBy, "started-by", "", "initiator recorded on the instance")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "caller supplied correlation id")
	return cmd
}

func (c *cli) resumeCommand() *cobra.Command {
	var (
		instanceID  string
		activityID  string
		input       string
		completedBy string
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Complete a waiting activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var output map[string]interface{}
			if input != "" {
				if err := json.Unmarshal([]byte(input), &output); err != nil {
					return fmt.Errorf("--input must be a JSON object: %w", err)
				}
			}

			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			instance, err := fc.ResumeWorkflow(cmd.Context(), ports.ResumeRequest{
				InstanceID:  instanceID,
				ActivityID:  activityID,
				OutputData:  output,
				CompletedBy: completedBy,
			})
			return printOutcome(cmd.OutOrStdout(), instance, err)
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&activityID, "activity", "", "waiting activity id")
	cmd.Flags().StringVar(&input, "input", "", "activity output as a JSON object")
	cmd.Flags().StringVar(&completedBy, "by", "", "person completing the activity")
	_ = cmd.MarkFlagRequired("instance")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func (c *cli) cancelCommand() *cobra.Command {
	var instanceID, reason string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a running or suspended instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			instance, err := fc.CancelWorkflow(cmd.Context(), instanceID, reason)
			return printOutcome(cmd.OutOrStdout(), instance, err)
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&reason, "reason", "", "why the instance is cancelled")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func (c *cli) suspendCommand() *cobra.Command {
	var instanceID, reason string

	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "Suspend a running instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			instance, err := fc.SuspendWorkflow(cmd.Context(), instanceID, reason)
			return printOutcome(cmd.OutOrStdout(), instance, err)
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&reason, "reason", "", "why the instance is suspended")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func (c *cli) reactivateCommand() *cobra.Command {
	var instanceID string

	cmd := &cobra.Command{
		Use:   "reactivate",
		Short: "Return a suspended instance to running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			instance, err := fc.ReactivateWorkflow(cmd.Context(), instanceID)
			return printOutcome(cmd.OutOrStdout(), instance, err)
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func (c *cli) showCommand() *cobra.Command {
	var instanceID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			instance, err := fc.GetWorkflow(cmd.Context(), instanceID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), instance)
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	var (
		addr       string
		schemasDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load schemas and serve health and metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.viper.Set("metrics.enabled", true)

			fc, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer fc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if schemasDir != "" {
				loaded, err := fc.LoadSchemas(ctx, schemasDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d schema(s) from %s\n", len(loaded), schemasDir)
			}

			config := observability.DefaultConfig()
			config.Addr = addr
			return fc.ObservabilityServer(config).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", observability.DefaultConfig().Addr, "listen address")
	cmd.Flags().StringVar(&schemasDir, "schemas", "", "directory of schema files to register")
	return cmd
}

// parseVars reads key=value pairs. Values that parse as JSON keep their JSON
// type; anything else is a string.
func parseVars(pairs []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", pair)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		vars[key] = value
	}
	return vars, nil
}

// printOutcome prints the instance even when the call failed the workflow.
func printOutcome(w io.Writer, instance *domain.WorkflowInstance, err error) error {
	if instance != nil {
		if perr := printJSON(w, instance); perr != nil {
			return perr
		}
	}
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
