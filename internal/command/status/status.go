package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	cmdflags "vllmd/internal/command/flags"
	"vllmd/internal/config"

	"vllmd/pkg/flags"
	"vllmd/pkg/log"
	"vllmd/pkg/models"
	"vllmd/pkg/state"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const queryTimeout = 3 * time.Second

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of every slot in the fleet",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return status(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmdflags.AddStatusFlagsToCommand(cmd, cfg)

	return cmd, nil
}

func status(ctx context.Context, cfg *config.Config, out io.Writer) error {
	fleetStatus, err := queryAPI(ctx, cfg.HTTPAPIEndpoint)
	if err != nil {
		// A supervisor that is not running leaves its last snapshot behind.
		log.GetLogger(ctx).Debugf("admin API unreachable (%s), falling back to the state snapshot", err)

		fleetStatus, err = state.New(cfg.StateRootDir, afero.NewOsFs()).Get(ctx)
		if err != nil {
			return fmt.Errorf("no running supervisor and no state snapshot: %w", err)
		}
	}

	return Write(out, fleetStatus)
}

func queryAPI(ctx context.Context, endpoint string) (*models.FleetStatus, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(queryCtx, http.MethodGet, fmt.Sprintf("http://%s/v1/fleet", endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("building fleet request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin API returned %s", resp.Status)
	}

	fleetStatus := &models.FleetStatus{}
	if err := json.NewDecoder(resp.Body).Decode(fleetStatus); err != nil {
		return nil, fmt.Errorf("decoding fleet status: %w", err)
	}

	return fleetStatus, nil
}

// Write renders the fleet status as a table.
func Write(out io.Writer, fleetStatus *models.FleetStatus) error {
	fmt.Fprintf(out, "run %s: %s via %s, started %s\n\n",
		fleetStatus.RunID,
		fleetStatus.Model,
		fleetStatus.Provider,
		time.Unix(fleetStatus.StartedAt, 0).Format(time.RFC3339))

	writer := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(writer, "DEVICE\tPORT\tSTATE\tPID\tRESTARTS\tLAST ERROR")

	for _, slot := range fleetStatus.Slots {
		fmt.Fprintf(writer, "gpu%d\t%d\t%s\t%s\t%d\t%s\n",
			slot.Device,
			slot.Port,
			slot.Status.State,
			formatPid(slot.Status.Pid),
			slot.Status.Restarts,
			slot.Status.LastError)
	}

	return writer.Flush()
}

func formatPid(pid int) string {
	if pid == 0 {
		return "-"
	}

	return fmt.Sprintf("%d", pid)
}
