package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/buildinfo"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

const modulePath = "github.com/aidanlsb/gfxcheck"

// buildStamp identifies the running gfxcheck binary.
type buildStamp struct {
	Version    string `json:"version"`
	Module     string `json:"module"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Dirty      bool   `json:"dirty"`
	Go         string `json:"go"`
	Platform   string `json:"platform"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print which gfxcheck build is running",
	Long: `Print the gfxcheck release, the commit it was built from and the Go
toolchain and platform of the binary.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stamp := stampFromBuild(readBuildInfo())
		if isJSONOutput() {
			outputSuccess(stamp, nil)
			return nil
		}
		fmt.Println(stamp.String())
		fmt.Println(ui.Hint(fmt.Sprintf("%s, %s, %s", stamp.Module, stamp.Go, stamp.Platform)))
		return nil
	},
}

// String formats the stamp as one line, e.g. "gfxcheck v1.2.0 (abc1234, modified)".
func (b buildStamp) String() string {
	s := "gfxcheck " + b.Version
	switch {
	case b.Commit != "" && b.Dirty:
		s += fmt.Sprintf(" (%s, modified)", shortCommit(b.Commit))
	case b.Commit != "":
		s += fmt.Sprintf(" (%s)", shortCommit(b.Commit))
	case b.Dirty:
		s += " (modified)"
	}
	return s
}

// stampFromBuild combines the module build information with the values a
// release build stamps in through ldflags. The module information wins where
// both are present.
func stampFromBuild(info *debug.BuildInfo, ok bool) buildStamp {
	stamp := buildStamp{
		Version:  "devel",
		Module:   modulePath,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	if ok && info != nil {
		if info.Main.Path != "" {
			stamp.Module = info.Main.Path
		}
		if v := info.Main.Version; v != "" && v != "(devel)" {
			stamp.Version = v
		}
		if info.GoVersion != "" {
			stamp.Go = info.GoVersion
		}

		goos, goarch := runtime.GOOS, runtime.GOARCH
		for _, s := range info.Settings {
			switch s.Key {
			case "GOOS":
				goos = s.Value
			case "GOARCH":
				goarch = s.Value
			case "vcs.revision":
				stamp.Commit = s.Value
			case "vcs.time":
				stamp.CommitTime = s.Value
			case "vcs.modified":
				stamp.Dirty = s.Value == "true"
			}
		}
		stamp.Platform = goos + "/" + goarch
	}

	if stamp.Version == "devel" && buildinfo.Version != "" && buildinfo.Version != "(devel)" {
		stamp.Version = buildinfo.Version
	}
	if stamp.Commit == "" {
		stamp.Commit = buildinfo.Commit
	}
	if stamp.CommitTime == "" {
		stamp.CommitTime = buildinfo.Date
	}
	return stamp
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
