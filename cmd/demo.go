package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/imagecache"
	"github.com/krisalay/imagecache/dashboard"
	"github.com/krisalay/imagecache/types"
)

var (
	demoBucket    string
	demoWidth     int
	demoHeight    int
	demoRamMB     int64
	demoVideoMB   int64
	demoLoaders   int
)

var demoCmd = &cobra.Command{
	Use:   "demo [urls...]",
	Short: "Fetch the given URLs into one bucket and watch the live dashboard",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoBucket, "bucket", "demo", "bucket name requests are grouped under")
	demoCmd.Flags().IntVar(&demoWidth, "width", 512, "requested render width")
	demoCmd.Flags().IntVar(&demoHeight, "height", 512, "requested render height")
	demoCmd.Flags().Int64Var(&demoRamMB, "ram-budget-mb", 0, "override the configured RAM budget, in MiB")
	demoCmd.Flags().Int64Var(&demoVideoMB, "video-budget-mb", 0, "override the configured video-memory budget, in MiB")
	demoCmd.Flags().IntVar(&demoLoaders, "loaders-max", 0, "override the configured concurrent-loader cap")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(_ *cobra.Command, args []string) error {
	ramMB, videoMB, loaders := cfg.RamBudgetMB, cfg.VideoBudgetMB, cfg.LoadersMax
	if demoRamMB > 0 {
		ramMB = demoRamMB
	}
	if demoVideoMB > 0 {
		videoMB = demoVideoMB
	}
	if demoLoaders > 0 {
		loaders = demoLoaders
	}

	log := logrus.NewEntry(logrus.StandardLogger()).WithField("component", "imagecached")

	ctrl := cache.New(cache.Config{
		RamBytesBudget:   ramMB * 1024 * 1024,
		VideoBytesBudget: videoMB * 1024 * 1024,
		LoadersMax:       loaders,
		DecodeWorkers:    cfg.DecodeWorkers,
		Logger:           log,
	})
	defer ctrl.Shutdown()

	ctrl.AddBucket(demoBucket, false)

	size := types.Size{Width: demoWidth, Height: demoHeight}
	for _, url := range args {
		if _, err := ctrl.Request(cache.RequestOptions{
			URL:    url,
			Size:   size,
			Bucket: demoBucket,
		}); err != nil {
			log.WithError(err).WithField("url", url).Warn("request failed")
		}
	}

	return dashboard.Run(ctrl, ramMB*1024*1024, videoMB*1024*1024)
}
