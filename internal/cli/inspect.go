package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edvin/clustermanifest/internal/topology"
)

func newGroupsCmd() *cobra.Command {
	var (
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "groups -f TOPOLOGY",
		Short: "Print the role groups derived from a topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			r, err := openTopology(cmd, file)
			if err != nil {
				return err
			}
			defer r.Close()

			gen, err := newGenerator(cfg, logger, nil)
			if err != nil {
				return err
			}
			res, err := gen.Render(cmd.Context(), r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(res.Groups); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Groups)
			default:
				return fmt.Errorf("unknown output %q", output)
			}
		},
	}

	addTopologyFlag(cmd, &file)
	addRoleFlag(cmd)
	cmd.Flags().StringVar(&output, "output", "json", "output format (json or yaml)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate -f TOPOLOGY",
		Short: "Check a topology and list every problem found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := setup(cmd); err != nil {
				return err
			}
			r, err := openTopology(cmd, file)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			t, err := topology.Load(r)

			var invalid *topology.InvalidError
			if errors.As(err, &invalid) {
				for _, p := range invalid.Problems {
					fmt.Fprintln(out, p.String())
				}
				return fmt.Errorf("%w: %d problem(s)", topology.ErrInvalidTopology, len(invalid.Problems))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "ok: %d node(s), version %s\n", len(t.Nodes), t.Version())
			return nil
		},
	}

	addTopologyFlag(cmd, &file)
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the topology document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := topology.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return err
		},
	}
}
