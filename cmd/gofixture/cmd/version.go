package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/sqlutil"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the gofixture version, the revision it was built from and the
database dialects it can extract from and load into.`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildDetails describes the running binary.
type buildDetails struct {
	Module   string
	Revision string
	Modified bool
}

// readBuildDetails takes the module path and VCS revision from the embedded
// build info. The ldflags Commit wins over the VCS stamp when set.
func readBuildDetails(info *debug.BuildInfo, ok bool) buildDetails {
	d := buildDetails{Module: "github.com/dbsmedya/gofixture", Revision: Commit}
	if !ok || info == nil {
		return d
	}
	if info.Main.Path != "" {
		d.Module = info.Main.Path
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if d.Revision == "" || d.Revision == "unknown" {
				d.Revision = s.Value
			}
		case "vcs.modified":
			d.Modified = s.Value == "true"
		}
	}
	return d
}

func runVersion(cmd *cobra.Command, args []string) {
	d := readBuildDetails(debug.ReadBuildInfo())

	revision := d.Revision
	if d.Modified {
		revision += " (modified)"
	}
	dialects := []string{string(sqlutil.MySQL), string(sqlutil.Postgres), string(sqlutil.SQLite)}

	cmd.Printf("gofixture version %s\n", Version)
	cmd.Printf("  Module:   %s\n", d.Module)
	cmd.Printf("  Commit:   %s\n", revision)
	cmd.Printf("  Dialects: %s\n", strings.Join(dialects, ", "))
	cmd.Printf("  Go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
