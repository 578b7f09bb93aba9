package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/LJTian/TrendPress/internal/config"
	"github.com/LJTian/TrendPress/internal/pipeline"
	"github.com/LJTian/TrendPress/internal/storage"
	"github.com/spf13/cobra"
)

var (
	maxTrends int
	maxNews   int
	outputDir string
)

// 仅在前台执行一次完整流水线的命令行入口：适合手动触发
var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the trend news pipeline once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if maxTrends > 0 {
			cfg.MaxTrends = maxTrends
		}
		if maxNews > 0 {
			cfg.MaxNewsPerTrend = maxNews
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}

		store, err := storage.NewStore(cfg.OutputDir, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := pipeline.FromConfig(cfg, store).Execute(context.Background())
		if err != nil {
			return err
		}
		log.Printf("collect done: run=%s processed=%d results=%s", summary.RunID, summary.TotalProcessed, storage.ResultsFile)
		return nil
	},
}

func init() {
	rootCmd.Flags().IntVar(&maxTrends, "max-trends", 0, "Maximum trends to process (default from MAX_TRENDS)")
	rootCmd.Flags().IntVar(&maxNews, "max-news", 0, "Maximum news per trend (default from MAX_NEWS_PER_TREND)")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default from OUTPUT_DIR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
