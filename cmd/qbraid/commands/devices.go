package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/devices"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/stores"
)

type deviceOutput struct {
	ID          string   `json:"id"`
	Provider    string   `json:"provider"`
	ProgramType string   `json:"program_type"`
	Target      string   `json:"target"`
	BasisGates  []string `json:"basis_gates,omitempty"`
	NumQubits   int      `json:"num_qubits"`
	Simulator   bool     `json:"simulator"`
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List configured devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			fleet, err := a.fleet(ctx)
			if err != nil {
				return err
			}

			var out []deviceOutput
			for _, d := range fleet.Devices() {
				p := d.Profile()
				out = append(out, deviceOutput{
					ID:          d.ID(),
					Provider:    p.Provider,
					ProgramType: string(d.ProgramType()),
					Target:      d.Target().Name,
					BasisGates:  d.Target().GateSet.Names(),
					NumQubits:   p.NumQubits,
					Simulator:   p.Simulator,
				})
			}
			if jsonOutput {
				return printJSON(out)
			}
			if len(out) == 0 {
				fmt.Println("No devices configured")
				return nil
			}
			for _, d := range out {
				basis := "any"
				if len(d.BasisGates) > 0 {
					basis = strings.Join(d.BasisGates, ",")
				}
				fmt.Printf("%-20s %-10s %-10s qubits=%d basis=%s\n", d.ID, d.Provider, d.ProgramType, d.NumQubits, basis)
			}
			return nil
		},
	}
}

func newSubmitCommand() *cobra.Command {
	var (
		deviceID    string
		shots       int
		from        string
		inFile      string
		noTranspile bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a program to a device",
		Long: `Submit a program to a configured device.

The program is converted to the device's program type, rebased onto its basis
gates and checked against its constraints before the job is created.`,
		Example: `  # Submit a Bell circuit to a dry-run device
  qbraid submit --device sim --shots 1000 --in bell.qasm

  # Submit a program already in the device's type
  qbraid submit --device sim --in bell.qasm --no-transpile`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			op := a.start(cmd.Context(), "submit")
			defer func() { op.End(err) }()
			ctx := op.Ctx

			fleet, err := a.fleet(ctx)
			if err != nil {
				return err
			}
			device, ok := fleet.Get(deviceID)
			if !ok {
				return qerrors.NewInvalid(fmt.Sprintf("unknown device %q", deviceID), nil).
					WithCode(qerrors.ErrCodeValidation)
			}

			program, _, err := readProgram(a.catalog, inFile, from)
			if err != nil {
				return err
			}

			var opts []devices.SubmitOption
			if noTranspile {
				opts = append(opts, devices.WithoutTranspile())
			}
			job, err := device.Submit(ctx, program, shots, opts...)
			if err != nil {
				return err
			}
			op.Logger.WithDevice(device.ID()).WithJob(job.ID).Info("Job submitted")

			if jsonOutput {
				return printJSON(job)
			}
			printJob(job)
			return nil
		},
	}

	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "device id")
	cmd.Flags().IntVarP(&shots, "shots", "s", 1024, "number of shots")
	cmd.Flags().StringVarP(&from, "from", "f", "", "program type (detected for OpenQASM)")
	cmd.Flags().StringVarP(&inFile, "in", "i", "", "input file (default stdin)")
	cmd.Flags().BoolVar(&noTranspile, "no-transpile", false, "submit the program unchanged")
	cmd.MarkFlagRequired("device")

	return cmd
}

func newJobsCommand() *cobra.Command {
	var (
		deviceID    string
		status      string
		limit       int
		conversions bool
		remove      bool
	)

	cmd := &cobra.Command{
		Use:   "jobs [ID]",
		Short: "List jobs or show one job",
		Long: `List recorded jobs, or show one job and its event log. With --conversions,
list the conversion audit log instead. With --delete, remove one job and its
events.`,
		Example: `  # Recent jobs on a device
  qbraid jobs --device sim --limit 10

  # One job with its events
  qbraid jobs 3f1c...

  # Conversion history
  qbraid jobs --conversions

  # Delete a job and its events
  qbraid jobs 3f1c... --delete`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			if conversions {
				records, err := store.ListConversions(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(records)
				}
				for _, r := range records {
					fmt.Printf("%s  %-8s %s  (%dms)\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.Path, r.DurationMS)
				}
				return nil
			}

			if remove {
				if len(args) != 1 {
					return qerrors.NewInvalid("--delete needs a job ID", nil)
				}
				if err := store.DeleteJob(ctx, args[0]); err != nil {
					return err
				}
				a.logger.Info().Str("job_id", args[0]).Msg("Job deleted")
				return nil
			}

			if len(args) == 1 {
				job, err := store.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				events, err := store.GetJobEvents(ctx, job.ID, nil, 0, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]interface{}{"job": job, "events": events})
				}
				printJob(job)
				for _, e := range events {
					fmt.Printf("  %s [%s] %s\n", e.Timestamp.Format("15:04:05.000"), e.Level, e.Message)
				}
				return nil
			}

			filter := stores.JobFilter{Limit: limit}
			if deviceID != "" {
				filter.DeviceID = &deviceID
			}
			if status != "" {
				s := stores.JobStatus(status)
				filter.Status = &s
			}
			jobs, err := store.ListJobs(ctx, filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(jobs)
			}
			for _, j := range jobs {
				fmt.Printf("%s  %-16s %-10s shots=%d\n", j.ID, j.DeviceID, j.Status, j.Shots)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "filter by device")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().BoolVar(&conversions, "conversions", false, "list the conversion audit log")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the job and its events")

	return cmd
}

func printJob(job *stores.Job) {
	fmt.Printf("Job:        %s\n", job.ID)
	fmt.Printf("Device:     %s\n", job.DeviceID)
	fmt.Printf("Status:     %s\n", job.Status)
	fmt.Printf("Shots:      %d\n", job.Shots)
	if job.Conversion != "" {
		fmt.Printf("Conversion: %s\n", job.Conversion)
	}
	if job.Result != nil {
		fmt.Printf("Result:     %s\n", *job.Result)
	}
	if job.Error != nil {
		fmt.Printf("Error:      %s\n", *job.Error)
	}
}
