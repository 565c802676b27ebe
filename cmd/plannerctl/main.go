// plannerctl 在命令行中查询课程数据集：数据集信息、班级、教师、筛选与冲突检测。
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"semester-planner/config"
	"semester-planner/internal/catalog"
)

var (
	sourceFlag  string
	configFlag  string
	outputFlag  string
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "plannerctl",
	Short: "Query a course catalog dataset",
	Long: `plannerctl loads a catalog dataset (local file or http(s) URL) and answers
the same queries the planner service does.

The dataset source is taken from --source, or from catalog.source in the
configuration file when --source is empty.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&sourceFlag, "source", "s", "", "dataset path or URL")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "configuration file (used when --source is empty)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "yaml", "output format: yaml | json")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "dataset fetch timeout")

	rootCmd.AddCommand(metaCmd, sectionCmd, instructorCmd, randomCmd, filterCmd, conflictsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadIndex 按标志或配置文件加载数据集
func loadIndex(ctx context.Context) (*catalog.Index, error) {
	source := sourceFlag
	if source == "" {
		cfg, err := config.LoadCatalog(configFlag)
		if err != nil {
			return nil, err
		}
		source = cfg.Source
	}
	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)
	defer cancel()

	idx, err := catalog.LoadFile(ctx, source, timeoutFlag)
	if err != nil {
		return nil, fmt.Errorf("加载数据集 %s 失败: %w", source, err)
	}
	return idx, nil
}
