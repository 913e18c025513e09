// vasp-opt-follows is a desktop viewer for VASP structural optimizations.
// Drop one or more vaspout.h5 files on the window (or pass them as
// arguments) and follow how the energy, forces, displacements and cell
// volume converged across the ionic steps.
package main

import (
	"flag"
	"fmt"
	"image"
	png "image/png"
	"os"
	"strings"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/vasp-tools/vasp-opt-follows/src/vaspdata"
)

const emptyStatus = "Drop a vaspout.h5 here or use Open…"

type uiState struct {
	app    fyne.App
	window fyne.Window

	files fileSet

	// series toggles
	showRMS   bool
	showMax   bool
	showDelta bool
	showHints bool

	// widgets
	list        *widget.List
	statusLabel *widget.Label

	energyImgCanvas *canvas.Image
	forceImgCanvas  *canvas.Image
	dispImgCanvas   *canvas.Image
	volumeImgCanvas *canvas.Image
}

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "loglevel", "info", "Log level: debug, info, warn or error")
	flag.Parse()
	vaspdata.SetLogLevel(logLevel)

	a := app.NewWithID("com.vasptools.optfollows")
	w := a.NewWindow("VASP Optimization Viewer")
	w.Resize(fyne.NewSize(1150, 820))

	state := &uiState{
		app:       a,
		window:    w,
		showRMS:   true,
		showMax:   true,
		showDelta: true,
	}
	loadPrefs(state)

	state.statusLabel = widget.NewLabel(emptyStatus)

	// series toggles (callbacks assigned after the canvases exist)
	rmsChk := widget.NewCheck("RMS", nil)
	maxChk := widget.NewCheck("Max", nil)
	deltaChk := widget.NewCheck("|ΔE|", nil)
	hintsChk := widget.NewCheck("Hints", nil)
	rmsChk.SetChecked(state.showRMS)
	maxChk.SetChecked(state.showMax)
	deltaChk.SetChecked(state.showDelta)
	hintsChk.SetChecked(state.showHints)

	// loaded files panel with a per-file close button
	state.list = widget.NewList(
		func() int { return state.files.Len() },
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil, widget.NewButton("Close", nil), widget.NewLabel(""))
		},
		func(id widget.ListItemID, o fyne.CanvasObject) {
			box := o.(*fyne.Container)
			label := box.Objects[0].(*widget.Label)
			btn := box.Objects[1].(*widget.Button)
			rf := state.files.At(id)
			if rf == nil {
				label.SetText("")
				btn.OnTapped = nil
				return
			}
			label.SetText(fmt.Sprintf("%s (%d steps)", rf.Name(), rf.NSteps))
			path := rf.Path
			btn.OnTapped = func() { closeFile(state, path) }
		},
	)

	// chart placeholders
	state.energyImgCanvas = newChartCanvas()
	state.forceImgCanvas = newChartCanvas()
	state.dispImgCanvas = newChartCanvas()
	state.volumeImgCanvas = newChartCanvas()

	top := container.NewHBox(
		widget.NewButton("Open…", func() { openFileDialog(state) }),
		widget.NewButton("Clear All", func() { clearFiles(state) }),
		widget.NewSeparator(),
		rmsChk, maxChk, deltaChk, hintsChk,
		widget.NewSeparator(),
		state.statusLabel,
	)

	chartsColumn := container.NewVBox(
		state.energyImgCanvas,
		widget.NewSeparator(),
		state.forceImgCanvas,
		widget.NewSeparator(),
		state.dispImgCanvas,
		widget.NewSeparator(),
		state.volumeImgCanvas,
	)
	chartsScroll := container.NewVScroll(chartsColumn)
	chartsScroll.SetMinSize(fyne.NewSize(900, 650))

	filesPanel := container.NewBorder(widget.NewLabel("Loaded files"), nil, nil, nil, state.list)
	split := container.NewHSplit(filesPanel, chartsScroll)
	split.Offset = 0.22

	w.SetContent(container.NewBorder(top, nil, nil, nil, split))

	// both dropped files and directories-of-one arrive as URIs
	w.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		for _, u := range uris {
			openPath(state, u.Path())
		}
	})

	// Redraw charts on window resize so they scale with width
	if w.Canvas() != nil {
		prevW := int(w.Canvas().Size().Width)
		done := make(chan struct{})
		w.SetOnClosed(func() {
			savePrefs(state)
			close(done)
		})
		go func() {
			t := time.NewTicker(300 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					c := w.Canvas()
					if c == nil {
						continue
					}
					if cur := int(c.Size().Width); cur != prevW {
						prevW = cur
						fyne.Do(func() { redrawCharts(state) })
					}
				}
			}
		}()
	}

	// Now that canvases exist, assign the toggle callbacks
	rmsChk.OnChanged = func(b bool) { state.showRMS = b; savePrefs(state); redrawCharts(state) }
	maxChk.OnChanged = func(b bool) { state.showMax = b; savePrefs(state); redrawCharts(state) }
	deltaChk.OnChanged = func(b bool) { state.showDelta = b; savePrefs(state); redrawCharts(state) }
	hintsChk.OnChanged = func(b bool) { state.showHints = b; savePrefs(state); redrawCharts(state) }

	buildMenus(state)

	// files given on the command line are opened before the loop starts
	for _, p := range flag.Args() {
		openPath(state, p)
	}
	refreshAfterChange(state)

	w.ShowAndRun()
}

func newChartCanvas() *canvas.Image {
	img := canvas.NewImageFromImage(blank(800, 280))
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(900, 300))
	return img
}

// openPath loads one result file and folds it into the window state. Open
// failures surface as a dialog and leave the file list untouched.
func openPath(state *uiState, path string) {
	rf, err := vaspdata.Load(path)
	if err != nil {
		vaspdata.Errorf("%v", err)
		if state.window != nil {
			dialog.ShowError(err, state.window)
		}
		return
	}
	if state.files.Add(rf) {
		fmt.Printf("[viewer] reloaded %s\n", rf.Name())
	} else {
		fmt.Printf("[viewer] loaded %s: %d steps, %d ions\n", rf.Name(), rf.NSteps, rf.NIons)
	}
	addRecentFile(state, path)
	buildMenus(state) // refresh the recent-files menu
	refreshAfterChange(state)
}

func closeFile(state *uiState, path string) {
	if i := state.files.IndexOf(path); i >= 0 {
		state.files.RemoveAt(i)
		refreshAfterChange(state)
	}
}

func clearFiles(state *uiState) {
	if state.files.Empty() {
		return
	}
	state.files.Clear()
	refreshAfterChange(state)
}

// refreshAfterChange re-renders everything that depends on the file set.
func refreshAfterChange(state *uiState) {
	if state.list != nil {
		state.list.Refresh()
	}
	if state.statusLabel != nil {
		if state.files.Empty() {
			state.statusLabel.SetText(emptyStatus)
		} else {
			state.statusLabel.SetText(fmt.Sprintf("%d file(s) loaded", state.files.Len()))
		}
	}
	redrawCharts(state)
}

func redrawCharts(state *uiState) {
	cw, chh := chartSize(state)
	set := func(cv *canvas.Image, img image.Image) {
		if cv == nil || img == nil {
			return
		}
		cv.Image = img
		cv.SetMinSize(fyne.NewSize(float32(cw), float32(chh)))
		cv.Refresh()
	}
	set(state.energyImgCanvas, renderEnergyChart(state))
	set(state.forceImgCanvas, renderForcesChart(state))
	set(state.dispImgCanvas, renderDisplacementChart(state))
	set(state.volumeImgCanvas, renderVolumeChart(state))
}

// menus and dialogs
func buildMenus(state *uiState) {
	if state == nil || state.window == nil || state.app == nil {
		return
	}
	var items []*fyne.MenuItem
	for _, f := range recentFiles(state) {
		f := f
		items = append(items, fyne.NewMenuItem(f, func() { openPath(state, f) }))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() { clearRecentFiles(state); buildMenus(state) })
	recentMenu := fyne.NewMenu("Open Recent", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open…", func() { openFileDialog(state) }),
		fyne.NewMenuItem("Clear All", func() { clearFiles(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Energy Chart…", func() { exportChartPNG(state, state.energyImgCanvas, "energy_chart.png") }),
		fyne.NewMenuItem("Export Forces Chart…", func() { exportChartPNG(state, state.forceImgCanvas, "forces_chart.png") }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu, recentMenu))

	canv := state.window.Canvas()
	if canv != nil {
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { openFileDialog(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { openFileDialog(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { state.window.Close() })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { state.window.Close() })
	}
}

func openFileDialog(state *uiState) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		openPath(state, rc.URI().Path())
	}, state.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".h5"}))
	d.Show()
}

// export PNG
func exportChartPNG(state *uiState, img *canvas.Image, defaultName string) {
	if state == nil || state.window == nil || img == nil || img.Image == nil {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		_ = png.Encode(wc, img.Image)
	}, state.window)
	fs.SetFileName(defaultName)
	fs.Show()
}

// recent files helpers
func recentFiles(state *uiState) []string {
	raw := state.app.Preferences().StringWithFallback("recentFiles", "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func addRecentFile(state *uiState, path string) {
	filtered := []string{path}
	for _, f := range recentFiles(state) {
		if f != path && len(filtered) < 10 {
			filtered = append(filtered, f)
		}
	}
	state.app.Preferences().SetString("recentFiles", strings.Join(filtered, "\n"))
}

func clearRecentFiles(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	state.app.Preferences().SetString("recentFiles", "")
}

// prefs
func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetBool("showRMS", state.showRMS)
	prefs.SetBool("showMax", state.showMax)
	prefs.SetBool("showDelta", state.showDelta)
	prefs.SetBool("showHints", state.showHints)
}

func loadPrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	state.showRMS = prefs.BoolWithFallback("showRMS", state.showRMS)
	state.showMax = prefs.BoolWithFallback("showMax", state.showMax)
	state.showDelta = prefs.BoolWithFallback("showDelta", state.showDelta)
	state.showHints = prefs.BoolWithFallback("showHints", state.showHints)
}
