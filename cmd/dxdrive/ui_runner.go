package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"dxdrive/internal/buildpipeline"
	"dxdrive/internal/ui"
)

type buildOutcome struct {
	result buildpipeline.BuildResult
	err    error
}

// runBuildWithUI runs the build in the background and renders its events
// with the progress view until the build finishes.
func runBuildWithUI(ctx context.Context, title string, shaders []string, req buildpipeline.BuildRequest) (buildpipeline.BuildResult, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		defer close(events)
		req.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Build(ctx, &req)
		outcomeCh <- buildOutcome{result: res, err: err}
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, shaders, events), tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The view may quit before the build does (ctrl+c); keep the sink
	// unblocked until the builder closes the channel.
	for range events {
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
