package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/buildverify/internal/baseline"
	"github.com/agentic-research/buildverify/internal/buildinfo"
)

func init() {
	flags := renderCmd.Flags()
	flags.String("js", "", "Bundled JavaScript output to dump against the build-info sections")
	flags.String("dts", "", "Bundled declaration output to dump against the build-info sections")
	rootCmd.AddCommand(renderCmd)

	renderMapCmd.Flags().String("generated", "", "Generated file the map describes")
	rootCmd.AddCommand(renderMapCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <buildinfo>",
	Short: "Dump the bundle sections recorded in a build-info file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		info, err := buildinfo.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		jsPath, _ := cmd.Flags().GetString("js")
		dtsPath, _ := cmd.Flags().GetString("dts")
		if jsPath == "" && dtsPath == "" {
			_, err := cmd.OutOrStdout().Write(info.Marshal())
			return err
		}
		for _, part := range []struct {
			file   string
			bundle *buildinfo.Bundle
		}{{jsPath, info.JS}, {dtsPath, info.DTS}} {
			if part.file == "" {
				continue
			}
			content, err := os.ReadFile(part.file)
			if err != nil {
				return err
			}
			out, err := baseline.RenderBundle(filepath.ToSlash(part.file), part.bundle, string(content))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		}
		return nil
	},
}

var renderMapCmd = &cobra.Command{
	Use:   "render-map <file.map>",
	Short: "Dump the decoded mappings of a source map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sm, err := buildinfo.ParseSourceMap(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		var generated string
		if p, _ := cmd.Flags().GetString("generated"); p != "" {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			generated = string(raw)
		}
		out, err := baseline.RenderSourceMap(filepath.ToSlash(args[0]), sm, generated)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}
