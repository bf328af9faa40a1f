package host

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// InitializeSchedules starts the cron jobs (currently just the capture sweep)
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	c := cron.New()
	var sweepJob cron.Job
	sweepJob = cron.FuncJob(serverHandler.sweepCaptures)
	sweepJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(sweepJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", sweepInterval(serverHandler.ServerConfig.CaptureRetentionMinutes)), sweepJob)
	Logger.Info("Adding capture sweep scheduler",
		"retention_minutes", serverHandler.ServerConfig.CaptureRetentionMinutes)
	c.Start()
	return c
}

// sweepInterval runs the sweep a few times per retention window
func sweepInterval(retentionMinutes int) int {
	interval := retentionMinutes / 4
	if interval < 1 {
		interval = 1
	}
	return interval
}

// sweepCaptures deletes saved captures older than the retention window
func (serverHandler *ServerHandler) sweepCaptures() {
	captureDir := serverHandler.ServerConfig.CaptureDir
	retention := time.Duration(serverHandler.ServerConfig.CaptureRetentionMinutes) * time.Minute
	if captureDir == "" || retention <= 0 {
		return
	}

	entries, err := os.ReadDir(captureDir)
	if err != nil {
		if !os.IsNotExist(err) {
			Logger.Error("Unable to read capture folder", "path", captureDir, "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(captureDir, entry.Name())
		if err := os.Remove(path); err != nil {
			Logger.Warn("Unable to remove expired capture", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		Logger.Info("Swept expired captures", "count", removed, "path", captureDir)
	}
}
