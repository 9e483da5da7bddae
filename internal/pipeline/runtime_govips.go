//go:build govips && cgo

package pipeline

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   64 * 1024 * 1024,
			MaxCacheSize:  50,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return registerBuiltins()
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func encodeWebP(pngData []byte) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(pngData)
	if err != nil {
		return nil, fmt.Errorf("load rendered chart: %w", err)
	}
	defer img.Close()

	params := vips.NewWebpExportParams()
	params.Quality = 90
	data, _, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return data, nil
}
