package frames

import (
	"context"

	"weaponwatch/alerting/internal/sources"
)

// Status is the webcam view shown to clients.
type Status struct {
	Streaming   bool        `json:"streaming"`
	FPS         int         `json:"fps"`
	TotalFrames uint64      `json:"total_frames"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Recent      []Detection `json:"recent_detections"`
}

// Controller starts and stops sampling. The loop only runs while streaming.
type Controller struct {
	loop   *Loop
	runner *sources.Runner
	ctx    context.Context
}

// NewController binds the loop to its runner. ctx bounds every streaming
// session started through the controller.
func NewController(ctx context.Context, loop *Loop, runner *sources.Runner) *Controller {
	return &Controller{loop: loop, runner: runner, ctx: ctx}
}

func (c *Controller) Start() bool {
	if c.runner.Running() {
		return false
	}
	c.loop.Reset()
	return c.runner.Start(c.ctx)
}

func (c *Controller) Stop() bool {
	if !c.runner.Running() {
		return false
	}
	c.runner.Stop()
	c.loop.Reset()
	return true
}

func (c *Controller) Status() Status {
	w, h := c.loop.Bounds()
	return Status{
		Streaming:   c.runner.Running(),
		FPS:         c.loop.FPS(),
		TotalFrames: c.loop.TotalFrames(),
		Width:       w,
		Height:      h,
		Recent:      c.loop.Recent(),
	}
}
