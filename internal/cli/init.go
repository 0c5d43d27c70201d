package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var (
	initLocations []string
	initTemplates []string
	initForce     bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a settings file",
	Long: `Creates a settings file with every option set to its default.

The file is written to ./gfxcheck.toml unless a path is given. Graphics
locations and destination templates can be filled in right away with
--location and --template, or edited in the file afterwards.

Examples:
  gfxcheck init
  gfxcheck init --location /srv/gfx/portraits --template "graphics/pictures/person/{id}/portrait"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName
		if len(args) == 1 {
			path = args[0]
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return handleErrorMsg(ErrSettingsExists,
				fmt.Sprintf("settings file already exists: %s", path),
				"Use --force to overwrite it")
		}

		s := config.Default()
		s.Locations = initLocations
		s.ValidToPaths = initTemplates
		if err := config.SaveTo(path, s); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"path": path}, nil)
			return nil
		}
		fmt.Println(ui.Successf("Created %s", ui.FilePath(path)))
		if len(s.Locations) == 0 || len(s.ValidToPaths) == 0 {
			fmt.Println(ui.Hint("Add locations and valid_to_paths before running 'gfxcheck run'."))
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringArrayVar(&initLocations, "location", nil, "Graphics location to validate (repeatable)")
	initCmd.Flags().StringArrayVar(&initTemplates, "template", nil, "Destination template with an {id} placeholder (repeatable)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}
