package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	cmdflags "vllmd/internal/command/flags"
	"vllmd/internal/command/fleet"
	"vllmd/internal/config"

	"vllmd/pkg/flags"
	"vllmd/pkg/models"
	"vllmd/pkg/planner"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	outputFlag = "output"

	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the launch plan for the fleet without starting it",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString(outputFlag)
			if err != nil {
				return err
			}

			return plan(cmd, cfg, format)
		},
	}

	cmdflags.AddFleetFlagsToCommand(cmd, cfg)
	cmd.Flags().StringP(outputFlag, "o", formatTable, "The output format. Can be 'table', 'json' or 'yaml'.")

	return cmd, nil
}

func plan(cmd *cobra.Command, cfg *config.Config, format string) error {
	launch, devices, err := fleet.Resolve(cmd.Context(), cfg, afero.NewOsFs())
	if err != nil {
		return err
	}

	// The plan is informational, assign ports and log paths without
	// touching the log directory.
	slots, err := planner.Plan(launch, devices, afero.NewMemMapFs())
	if err != nil {
		return err
	}

	return Write(cmd.OutOrStdout(), slots, format)
}

// Write renders the slots in the requested format.
func Write(out io.Writer, slots []*models.DeviceSlot, format string) error {
	switch format {
	case formatTable:
		return writeTable(out, slots)
	case formatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(slots)
	case formatYAML:
		buf, err := yaml.Marshal(slots)
		if err != nil {
			return fmt.Errorf("marshalling plan to yaml: %w", err)
		}

		_, err = out.Write(buf)

		return err
	default:
		return fmt.Errorf("unknown output format %s", format)
	}
}

func writeTable(out io.Writer, slots []*models.DeviceSlot) error {
	writer := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(writer, "DEVICE\tPORT\tLOG")

	for _, slot := range slots {
		fmt.Fprintf(writer, "gpu%d\t%d\t%s\n", slot.Device, slot.Port, slot.LogPath)
	}

	return writer.Flush()
}
