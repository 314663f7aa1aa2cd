package tui

import (
	"github.com/gdamore/tcell/v2"
)

// Proxmox color palette
var (
	// Primary Proxmox color
	ProxmoxOrange = tcell.NewRGBColor(229, 112, 0) // #E57000

	// Neutral colors
	ProxmoxDark  = tcell.NewRGBColor(40, 40, 40)    // #282828
	ProxmoxLight = tcell.NewRGBColor(200, 200, 200) // #C8C8C8

	// Status colors
	SuccessGreen  = tcell.NewRGBColor(34, 197, 94) // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68) // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8) // #EAB308
)

// Symbols and icons
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolBullet  = "•"
)

// StatusSymbol returns the list marker for an entity lifecycle status.
func StatusSymbol(status string) string {
	switch status {
	case "running":
		return SymbolSuccess
	case "stopped":
		return SymbolBullet
	default:
		return SymbolWarning
	}
}
