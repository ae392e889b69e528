package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"pocketup/internal/instance"
	"pocketup/internal/paths"
	"pocketup/pkg/corespec"
)

type instanceReport struct {
	Core       string   `json:"core"`
	Written    []string `json:"written"`
	Existing   []string `json:"existing"`
	Incomplete []string `json:"incomplete"`
	Warnings   []string `json:"warnings"`
	Error      string   `json:"error,omitempty"`
}

func newInstancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instances [core]",
		Short: "Generate instance files for installed cores that ship a packager",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.ErrOrStderr(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			reports, err := buildInstances(env.fs, env.synthesizer(), firstArg(args))
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), reports)
			}

			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No installed core ships an instance packager.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CORE\tWRITTEN\tEXISTING\tINCOMPLETE\tNOTE")
			for _, r := range reports {
				note := r.Error
				if note == "" && len(r.Warnings) > 0 {
					note = r.Warnings[0]
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Core, len(r.Written), len(r.Existing), len(r.Incomplete), note)
			}
			return tw.Flush()
		},
	}
}

// buildInstances runs the synthesizer for every installed core with an
// instance packager, or just for only when it is set.
func buildInstances(fs afero.Fs, syn *instance.Synthesizer, only string) ([]instanceReport, error) {
	var ids []string
	if only != "" {
		ok, err := paths.DirExists(fs, paths.CoreDir(only))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("core %s is not installed", only)
		}
		ids = []string{only}
	} else {
		entries, err := afero.ReadDir(fs, paths.CoresDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("list cores: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				ids = append(ids, e.Name())
			}
		}
		sort.Strings(ids)
	}

	var reports []instanceReport
	for _, id := range ids {
		spec, ok, err := corespec.LoadInstancePackager(fs, paths.CoreDir(id))
		if err != nil {
			reports = append(reports, instanceReport{Core: id, Error: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		res, err := syn.Build(spec, paths.CommonDir(spec.PlatformID))
		rep := instanceReport{
			Core:       id,
			Written:    relSlash(res.Written),
			Existing:   relSlash(res.Existing),
			Incomplete: relSlash(res.Incomplete),
			Warnings:   res.Warnings,
		}
		if err != nil {
			rep.Error = err.Error()
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func relSlash(in []string) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = filepath.ToSlash(p)
	}
	return out
}
