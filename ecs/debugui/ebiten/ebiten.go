// Package ebiten runs the debug overlay's Dear ImGui frames inside an Ebiten game.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/hajimehoshi/ebiten/v2"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// NewImguiBackend creates the backend and its window. imgui.ini persistence is disabled.
func NewImguiBackend(title string, width, height int) ImguiBackend {
	backend := ebitenbackend.NewEbitenBackend()
	backend.CreateWindow(title, width, height)
	imgui.CurrentIO().SetIniFilename("")
	return ImguiBackend{EbitenBackend: backend}
}

// Game brackets the wrapped game's Draw, where the scheduler renders, with an ImGui frame
// and draws the ImGui output on top.
type Game struct {
	ebiten.Game
	Backend ImguiBackend
}

func Wrap(game ebiten.Game, backend ImguiBackend) *Game {
	return &Game{Game: game, Backend: backend}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.Backend.BeginFrame()
	g.Game.Draw(screen)
	g.Backend.EndFrame()
	g.Backend.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.Backend.Layout(outsideWidth, outsideHeight)
	return g.Game.Layout(outsideWidth, outsideHeight)
}
