package system

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

var (
	AudioExtensions    = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}
	ShotListExtensions = []string{".csv", ".yaml", ".yml"}
)

// InitResourceLimits raises the open-file limit; frame sequences and PDF boards
// can keep many descriptors busy during prefetch.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// FindLatest returns the most recently modified file in dir whose extension is
// one of exts (case-insensitive).
func FindLatest(dir string, exts []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func FindLatestAudio(dir string) (string, error) {
	return FindLatest(dir, AudioExtensions)
}

func FindLatestShotList(dir string) (string, error) {
	return FindLatest(dir, ShotListExtensions)
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetAudioDuration asks ffprobe for the container duration in seconds.
func GetAudioDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration)
	if err != nil {
		return 0, err
	}

	return duration, nil
}

// SuggestCacheSize picks a prefetch queue length that keeps decoded frames of
// frameBytes each within a quarter of the currently available memory. The result
// is clamped to [min, max]; on probe failure def is returned.
func SuggestCacheSize(frameBytes uint64, def, min, max int) int {
	vm, err := mem.VirtualMemory()
	if err != nil || frameBytes == 0 {
		return def
	}
	return cacheSizeFor(vm.Available, frameBytes, min, max)
}

func cacheSizeFor(available, frameBytes uint64, min, max int) int {
	n := int(available / 4 / frameBytes)
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// HostMemory is a snapshot of system memory for session reports.
type HostMemory struct {
	TotalMB     uint64
	AvailableMB uint64
	UsedPercent float64
}

func ReadHostMemory() (HostMemory, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostMemory{}, err
	}
	return HostMemory{
		TotalMB:     vm.Total >> 20,
		AvailableMB: vm.Available >> 20,
		UsedPercent: vm.UsedPercent,
	}, nil
}
