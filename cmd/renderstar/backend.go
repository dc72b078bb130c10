package main

import (
	"fmt"
	"log/slog"

	"renderstar/internal/config"
	"renderstar/internal/graphics"
	"renderstar/internal/graphics/headless"
	"renderstar/internal/graphics/opengl"
	"renderstar/internal/graphics/vulkan"
)

// newBackend picks the resource backend and presentation device the
// settings name. Vulkan has no presentation device: resources live on the
// GPU while frames go through the headless device's bookkeeping.
func newBackend(settings config.Settings, logger *slog.Logger) (graphics.Backend, graphics.Device, error) {
	switch settings.Renderer.Backend {
	case "opengl":
		return opengl.New(), opengl.NewDevice(logger), nil
	case "vulkan":
		b, err := vulkan.New(settings.Window.Title, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Warn("vulkan backend has no presentation device; the window stays blank")
		return b, headless.NewDevice(), nil
	}
	return nil, nil, fmt.Errorf("backend %q needs no window", settings.Renderer.Backend)
}
