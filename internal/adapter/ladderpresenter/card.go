package ladderpresenter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

const (
	cardWidth     = 480
	cardHeaderH   = 56
	cardRowH      = 28
	cardPadding   = 20
	cardMaxRows   = 50
	nameColumnX   = 64
	ratingColumnX = 300
	recordColumnX = 380
)

var (
	titleColor  = color.RGBA{0xFF, 0xF4, 0xD6, 0xFF}
	textColor   = color.RGBA{0xEE, 0xEE, 0xF2, 0xFF}
	mutedColor  = color.RGBA{0xA8, 0xAD, 0xBD, 0xFF}
	medalColors = []color.RGBA{
		{0xF5, 0xC5, 0x42, 0xFF},
		{0xC9, 0xCE, 0xD6, 0xFF},
		{0xD0, 0x8A, 0x4E, 0xFF},
	}
)

// cardSVG is the background: a rounded dark panel with a gradient header band
// and a stripe behind every other row.
func cardSVG(height, rows int) string {
	var stripes strings.Builder
	for i := 1; i < rows; i += 2 {
		y := cardHeaderH + cardPadding/2 + i*cardRowH
		fmt.Fprintf(&stripes, `<rect x="12" y="%d" width="%d" height="%d" fill="#2A2E3D"/>`, y, cardWidth-24, cardRowH)
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[2]d" viewBox="0 0 %[1]d %[2]d">
<defs><linearGradient id="hdr" x1="0" y1="0" x2="1" y2="0">
<stop offset="0" stop-color="#3B4A8C"/><stop offset="1" stop-color="#7A3B8C"/></linearGradient></defs>
<rect x="0" y="0" width="%[1]d" height="%[2]d" rx="18" ry="18" fill="#20232F"/>
<rect x="0" y="0" width="%[1]d" height="%[3]d" rx="18" ry="18" fill="url(#hdr)"/>
<rect x="0" y="%[4]d" width="%[1]d" height="18" fill="#20232F"/>
%[5]s
</svg>`, cardWidth, height, cardHeaderH, cardHeaderH, stripes.String())
}

// RenderLeaderboardCard draws the ranked players as a PNG.
func RenderLeaderboardCard(title string, players []*ladder.Player) ([]byte, error) {
	if len(players) > cardMaxRows {
		players = players[:cardMaxRows]
	}
	rows := len(players)
	if rows == 0 {
		rows = 1
	}
	height := cardHeaderH + cardPadding + rows*cardRowH

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	icon, err := oksvg.ReadIconStream(strings.NewReader(cardSVG(height, rows)))
	if err != nil {
		return nil, fmt.Errorf("parse card svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(cardWidth), float64(height))
	scanner := rasterx.NewScannerGV(cardWidth, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(cardWidth, height, scanner), 1.0)

	d := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Leaderboard"
	}
	drawText(d, cardPadding, cardHeaderH/2+5, title, titleColor)

	if len(players) == 0 {
		drawText(d, cardPadding, rowBaseline(0), "No players yet", mutedColor)
	}
	for i, p := range players {
		y := rowBaseline(i)
		rankColor := mutedColor
		if i < len(medalColors) {
			rankColor = medalColors[i]
		}
		drawText(d, cardPadding, y, "#"+strconv.Itoa(i+1), rankColor)
		drawText(d, nameColumnX, y, truncate(d, p.Name(), ratingColumnX-nameColumnX-12), textColor)
		drawText(d, ratingColumnX, y, strconv.Itoa(p.Rating), textColor)
		drawText(d, recordColumnX, y, fmt.Sprintf("%dW %dL", p.Wins, p.Losses), mutedColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func rowBaseline(i int) int {
	return cardHeaderH + cardPadding/2 + i*cardRowH + cardRowH/2 + 5
}

func drawText(d *font.Drawer, x, y int, s string, c color.Color) {
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// truncate shortens s with "..." until it fits in maxWidth pixels.
func truncate(d *font.Drawer, s string, maxWidth int) string {
	s = strings.TrimSpace(s)
	if d.MeasureString(s).Round() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + "..."; d.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return "..."
}
