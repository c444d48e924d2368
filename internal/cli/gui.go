package cli

import (
	"context"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/ytget/soft-downloader/internal/ui"
)

// AppID identifies the app to Fyne (preferences, notifications)
const AppID = "com.ytget.soft-downloader"

func newGUICommand(current func() *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd, current())
		},
	}
}

func runGUI(cmd *cobra.Command, rt *Runtime) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	core, err := rt.buildCore(ctx)
	if err != nil {
		return err
	}
	if err := core.Start(ctx); err != nil {
		return err
	}
	defer core.Stop()
	rt.serveMetrics(ctx)

	a := fyneapp.NewWithID(AppID)
	a.SetIcon(ui.AppIcon)

	w := a.NewWindow("")
	w.Resize(fyne.NewSize(ui.WindowWidth, ui.WindowHeight))

	root := ui.NewRootUI(w, a, core, rt.Logger)
	defer root.Close()
	root.Reload()

	rt.Logger.Info().Str("backend", rt.Config.Backend.Kind).Msg("window opened")
	w.ShowAndRun()
	return nil
}
