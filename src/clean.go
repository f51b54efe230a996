package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/utils"
)

type cleanOptions struct {
	Export    string
	SheetName string
}

func newCleanCmd(root *rootOptions) *cobra.Command {
	opts := &cleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Run the cleaning pipeline and print the cleaning log",
		Example: `  # Print the cleaning log
  bikeshare clean --data trips.csv

  # Export the cleaned table
  bikeshare clean --data trips.csv --export clean.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()
			return runClean(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Export, "export", "e", "", "export the cleaned table (.csv or .xlsx)")
	cmd.Flags().StringVar(&opts.SheetName, "sheet", "clean", "sheet name for .xlsx export")

	return cmd
}

func runClean(cmd *cobra.Command, a *app, opts *cleanOptions) error {
	_, res, err := a.load()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		Roles processor.RoleMap     `json:"roles"`
		Log   processor.CleaningLog `json:"log"`
	}{res.Roles, res.Log}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if opts.Export == "" {
		return nil
	}
	path := a.exportPath(opts.Export)
	if err := export(res.Clean, path, opts.SheetName); err != nil {
		return err
	}
	a.logger.WithField("path", path).Info("清洗结果已导出")
	return nil
}

// export 按扩展名选择导出格式
func export(df dataframe.DataFrame, path, sheet string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return utils.SaveToExcel(df, path, sheet)
	case ".csv":
		return utils.SaveToCSV(df, path)
	}
	return fmt.Errorf("不支持的导出格式: %s", path)
}
