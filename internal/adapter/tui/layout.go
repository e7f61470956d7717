package tui

const (
	topBarHeight   = 1
	statusHeight   = 1
	logOuterHeight = 8
	sideOuterWidth = 38

	minWidth  = 60
	minHeight = 20
)

// layout holds the screen regions in terminal cell coordinates. Inner
// rectangles exclude the rounded border drawn around each box.
type layout struct {
	mapX, mapY, mapW, mapH int

	sideX, sideW   int // outer
	unitsOuterH    int
	detailOuterH   int
	unitsY         int // terminal row of the first unit entry
	unitRows       int
	logOuterW      int
	logRows        int
	mapOuterW      int
	mapOuterH      int
	sideInnerWidth int
}

func computeLayout(width, height int) layout {
	var l layout
	l.mapOuterW = max(width-sideOuterWidth, 4)
	l.mapOuterH = max(height-topBarHeight-statusHeight-logOuterHeight, 4)
	l.mapX, l.mapY = 1, topBarHeight+1
	l.mapW, l.mapH = l.mapOuterW-2, l.mapOuterH-2

	l.sideX = l.mapOuterW
	l.sideW = max(width-l.mapOuterW, 4)
	l.sideInnerWidth = l.sideW - 2
	l.unitsOuterH = max(l.mapOuterH/2, 4)
	l.detailOuterH = max(l.mapOuterH-l.unitsOuterH, 3)
	l.unitsY = topBarHeight + 2 // border + title line
	l.unitRows = max(l.unitsOuterH-3, 0)

	l.logOuterW = max(width, 4)
	l.logRows = logOuterHeight - 3
	return l
}

func (l layout) inMap(x, y int) bool {
	return x >= l.mapX && x < l.mapX+l.mapW && y >= l.mapY && y < l.mapY+l.mapH
}

// mapCell converts terminal coordinates to map-local cell coordinates.
func (l layout) mapCell(x, y int) (col, row int) {
	return x - l.mapX, y - l.mapY
}

// unitRow returns the visible unit list row under (x, y).
func (l layout) unitRow(x, y int) (int, bool) {
	if x <= l.sideX || x >= l.sideX+l.sideW-1 {
		return 0, false
	}
	row := y - l.unitsY
	if row < 0 || row >= l.unitRows {
		return 0, false
	}
	return row, true
}
